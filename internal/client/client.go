package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"camshell/internal/config"
	"camshell/internal/models"
)

var logger = log.New(os.Stderr, "[client] ", log.LstdFlags)

var (
	ErrHealthTimeout = errors.New("backend health check timed out")
	ErrStartTimeout  = errors.New("stream start timed out")
)

// StatusError is a non-retried request that came back unsuccessful, either
// as a bad HTTP status or as an error envelope inside a 200.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnChecking
	ConnConnected
)

type StreamState int

const (
	StreamIdle StreamState = iota
	StreamStarting
	StreamLive
)

// Client turns the slow-starting backend into a handful of observable states
// the window can render. Both polling loops are deadline-bounded; the
// generation counters keep an abandoned loop from publishing a stale result
// after a newer attempt has taken over.
type Client struct {
	mu      sync.Mutex
	cfg     *config.Config
	baseURL string
	http    *http.Client

	conn      ConnState
	stream    StreamState
	healthGen uint64
	streamGen uint64
	version   uint64

	detectionAvailable bool
	detectionEnabled   bool
}

func New(cfg *config.Config, baseURL string) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Snapshot is the read surface exposed to the window.
type Snapshot struct {
	Connected          bool
	Streaming          bool
	SystemStarting     bool
	DetectionAvailable bool
	DetectionEnabled   bool
	MediaURL           string
}

func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Connected:          c.conn == ConnConnected,
		Streaming:          c.stream == StreamLive,
		SystemStarting:     c.conn == ConnChecking || c.stream == StreamStarting,
		DetectionAvailable: c.detectionAvailable,
		DetectionEnabled:   c.detectionEnabled,
		MediaURL:           c.mediaURLLocked(),
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == ConnConnected
}

func (c *Client) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream == StreamLive
}

// MediaURL carries the version token while live and is empty otherwise.
func (c *Client) MediaURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaURLLocked()
}

func (c *Client) mediaURLLocked() string {
	if c.stream != StreamLive {
		return ""
	}
	return fmt.Sprintf("%s/video_feed?t=%d", c.baseURL, c.version)
}

// AwaitHealthy polls /health until the backend answers or the deadline
// expires. Already connected answers without a request; a second call while
// a check is running is a no-op, the running loop stays authoritative.
func (c *Client) AwaitHealthy() error {
	c.mu.Lock()
	if c.conn == ConnConnected || c.conn == ConnChecking {
		c.mu.Unlock()
		return nil
	}
	c.conn = ConnChecking
	c.healthGen++
	gen := c.healthGen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HealthTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		var health models.HealthResponse
		err := c.getJSON(ctx, "/health", &health)
		if err == nil {
			c.mu.Lock()
			if c.healthGen != gen {
				c.mu.Unlock()
				return nil
			}
			c.conn = ConnConnected
			c.detectionAvailable = health.DetectionAvailable
			c.mu.Unlock()

			logger.Printf("backend healthy")
			return nil
		}

		// The deadline is authoritative: it cancels the in-flight
		// request and wins over a pending retry tick.
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.healthGen == gen {
				c.conn = ConnDisconnected
			}
			c.mu.Unlock()

			logger.Printf("health check gave up after %s: %v", c.cfg.HealthTimeout, err)
			return ErrHealthTimeout
		case <-ticker.C:
		}
	}
}

// Disconnect marks the backend unreachable so a later AwaitHealthy probes
// again. Any in-flight health loop is invalidated.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthGen++
	c.conn = ConnDisconnected
}

// RefreshDetectionStatus re-reads the detection flags. It never probes a
// backend that is not known healthy, and any failure fails closed.
func (c *Client) RefreshDetectionStatus() error {
	c.mu.Lock()
	if c.conn != ConnConnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HealthTimeout)
	defer cancel()

	var st models.DetectionStatus
	if err := c.getJSON(ctx, "/object_detection_status", &st); err != nil {
		c.mu.Lock()
		c.detectionAvailable = false
		c.detectionEnabled = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.detectionAvailable = st.Available
	c.detectionEnabled = st.Enabled
	c.mu.Unlock()
	return nil
}

// StartStream drives the bounded start loop. The deadline is longer than the
// health check's because the backend may still be opening the camera.
// Calls while starting or live are no-ops.
func (c *Client) StartStream() error {
	c.mu.Lock()
	if c.stream != StreamIdle {
		c.mu.Unlock()
		return nil
	}
	c.stream = StreamStarting
	c.streamGen++
	gen := c.streamGen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StartTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.StartInterval)
	defer ticker.Stop()

	for {
		var resp models.ActionResponse
		err := c.postJSON(ctx, "/start_stream", &resp)
		if err == nil && !resp.Failed() {
			c.mu.Lock()
			if c.streamGen != gen {
				c.mu.Unlock()
				return nil
			}
			c.stream = StreamLive
			c.version++
			c.mu.Unlock()

			logger.Printf("stream live")
			_ = c.RefreshDetectionStatus()
			return nil
		}

		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.streamGen == gen && c.stream == StreamStarting {
				c.stream = StreamIdle
			}
			c.mu.Unlock()

			logger.Printf("stream start gave up after %s", c.cfg.StartTimeout)
			return ErrStartTimeout
		case <-ticker.C:
		}
	}
}

// StopStream is a single request, no retry. On failure the state is left as
// is and the caller may try again.
func (c *Client) StopStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HealthTimeout)
	defer cancel()

	var resp models.ActionResponse
	if err := c.postJSON(ctx, "/stop_stream", &resp); err != nil {
		return err
	}
	if resp.Failed() {
		return &StatusError{Endpoint: "/stop_stream", Message: resp.Message}
	}

	c.mu.Lock()
	c.streamGen++ // a still-running start loop may not resurrect the stream
	c.stream = StreamIdle
	c.mu.Unlock()

	_ = c.RefreshDetectionStatus()
	return nil
}

func (c *Client) EnableDetection() error {
	return c.toggleDetection("/enable_object_detection")
}

func (c *Client) DisableDetection() error {
	return c.toggleDetection("/disable_object_detection")
}

// toggleDetection flips nothing locally until the backend confirms; the
// flags are then re-read and the media URL re-versioned so the feed is
// re-fetched with the new overlay state.
func (c *Client) toggleDetection(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HealthTimeout)
	defer cancel()

	var resp models.ActionResponse
	if err := c.postJSON(ctx, path, &resp); err != nil {
		return err
	}
	if resp.Failed() {
		return &StatusError{Endpoint: path, Message: resp.Message}
	}

	c.mu.Lock()
	c.version++
	c.mu.Unlock()

	_ = c.RefreshDetectionStatus()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: path, Code: resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
