package backend

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"camshell/internal/config"
)

func packagedConfig(t *testing.T, dirs ...string) *config.Config {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Mode = config.ModePackaged
	cfg.Packaged.SearchDirs = dirs
	return cfg
}

func imageName(cfg *config.Config) string {
	if runtime.GOOS == "windows" {
		return cfg.BackendImage + ".exe"
	}
	return cfg.BackendImage
}

func placeBackend(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("placing fake backend: %v", err)
	}
	return path
}

func TestResolveDevMode(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Mode = config.ModeDev
	cfg.Dev.Interpreter = "python3"
	cfg.Dev.Script = "backend/main.py"

	sup := NewSupervisor(cfg)
	inv, err := sup.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if inv.Path != "python3" {
		t.Fatalf("expected interpreter path, got %q", inv.Path)
	}
	if len(inv.Args) != 1 || inv.Args[0] != "backend/main.py" {
		t.Fatalf("expected script arg, got %v", inv.Args)
	}
}

func TestResolveFirstCandidateWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	cfg := packagedConfig(t, first, second)

	placeBackend(t, first, imageName(cfg))
	placeBackend(t, second, imageName(cfg))

	sup := NewSupervisor(cfg)
	inv, err := sup.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if inv.Path != filepath.Join(first, imageName(cfg)) {
		t.Fatalf("expected first candidate, got %q", inv.Path)
	}
}

func TestResolveFallsBack(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	cfg := packagedConfig(t, first, second)

	want := placeBackend(t, second, imageName(cfg))

	sup := NewSupervisor(cfg)
	inv, err := sup.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if inv.Path != want {
		t.Fatalf("expected fallback %q, got %q", want, inv.Path)
	}
}

func TestResolveNotFoundListsCandidates(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	cfg := packagedConfig(t, first, second)

	sup := NewSupervisor(cfg)
	_, err := sup.Resolve()
	if err == nil {
		t.Fatalf("expected an error with no backend present")
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
	if len(notFound.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", notFound.Candidates)
	}
	if notFound.Candidates[0] != filepath.Join(first, imageName(cfg)) {
		t.Fatalf("candidate order wrong: %v", notFound.Candidates)
	}
}

func TestResolveCachesResult(t *testing.T) {
	dir := t.TempDir()
	cfg := packagedConfig(t, dir)

	path := placeBackend(t, dir, imageName(cfg))

	sup := NewSupervisor(cfg)
	inv, err := sup.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Removing the file must not matter: the cache skips the probe.
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing backend: %v", err)
	}

	again, err := sup.Resolve()
	if err != nil {
		t.Fatalf("cached Resolve failed: %v", err)
	}
	if again != inv {
		t.Fatalf("expected the cached invocation back")
	}
}
