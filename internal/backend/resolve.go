package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"camshell/internal/config"
)

// Invocation is a resolved way to launch the backend: a direct executable in
// packaged builds, an interpreter plus script in development.
type Invocation struct {
	Path string
	Args []string
}

// NotFoundError reports every location that was probed, so a broken install
// can be diagnosed from the log alone.
type NotFoundError struct {
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backend executable not found, tried: %s",
		strings.Join(e.Candidates, ", "))
}

// Resolve returns the cached invocation when present. The cache lives for
// the whole shell process; a restart is the only way to re-probe.
func (s *Supervisor) Resolve() (*Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved != nil {
		return s.resolved, nil
	}

	if s.cfg.Mode == config.ModeDev {
		// Development runs the script under an interpreter, trusted to
		// exist, no probing.
		s.resolved = &Invocation{
			Path: s.cfg.Dev.Interpreter,
			Args: []string{s.cfg.Dev.Script},
		}
		return s.resolved, nil
	}

	base := executableDir()
	name := s.cfg.BackendImage
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	var tried []string
	for _, dir := range s.cfg.Packaged.SearchDirs {
		p := filepath.Join(dir, name)
		if !filepath.IsAbs(dir) {
			p = filepath.Join(base, dir, name)
		}
		tried = append(tried, p)

		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			s.resolved = &Invocation{Path: p}
			return s.resolved, nil
		}
	}

	return nil, &NotFoundError{Candidates: tried}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
