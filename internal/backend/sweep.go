package backend

import (
	"bytes"
	"os/exec"
	"runtime"
)

// Sweep terminates every process matching the backend image name, including
// leftovers from a shell session that crashed without cleaning up. Nothing
// matching is the expected steady state and never an error.
func (s *Supervisor) Sweep() error {
	image := s.cfg.BackendImage

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("taskkill", "/F", "/T", "/IM", image+".exe")
	} else {
		cmd = exec.Command("pkill", "-f", image)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		// pkill exits 1 when no process matched.
		logger.Printf("sweep %s: %v %s", image, err, bytes.TrimSpace(out))
	} else {
		logger.Printf("swept stale %s instances", image)
	}

	return nil
}
