package stream

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
)

// MJPEGStreamer reads the backend's /video_feed response, a
// multipart/x-mixed-replace stream of JPEG parts, and turns it into frames.
type MJPEGStreamer struct {
	stopOnce sync.Once

	url    string
	cancel context.CancelFunc

	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewMJPEGStreamer(url string) *MJPEGStreamer {
	return &MJPEGStreamer{
		url:       url,
		frameChan: make(chan image.Image, 10),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func (ms *MJPEGStreamer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	ms.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ms.url, nil)
	if err != nil {
		cancel()
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("opening feed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("feed has unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	go ms.readLoop(resp.Body, params["boundary"])

	return nil
}

func (ms *MJPEGStreamer) readLoop(body io.ReadCloser, boundary string) {
	defer close(ms.frameChan)
	defer close(ms.errChan)
	defer body.Close()

	reader := multipart.NewReader(body, boundary)

	for {
		select {
		case <-ms.stopChan:
			return
		default:
		}

		part, err := reader.NextPart()
		if err != nil {
			select {
			case <-ms.stopChan:
				return
			default:
				ms.errChan <- fmt.Errorf("read error: %v", err)
				return
			}
		}

		img, err := jpeg.Decode(part)
		part.Close()
		if err != nil {
			// Torn frame, skip it.
			continue
		}

		select {
		case ms.frameChan <- img:
		case <-ms.stopChan:
			return
		}
	}
}

func (ms *MJPEGStreamer) Stop() {
	ms.stopOnce.Do(func() {
		close(ms.stopChan)
		if ms.cancel != nil {
			ms.cancel()
		}
	})
}

func (ms *MJPEGStreamer) FrameChan() <-chan image.Image { return ms.frameChan }
func (ms *MJPEGStreamer) ErrorChan() <-chan error       { return ms.errChan }
