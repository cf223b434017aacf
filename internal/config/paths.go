package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// configDir returns the platform-specific directory persisted config
// lives under.
func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "remote-desktop-rs")
	case "darwin":
		return "/Library/Application Support/remote-desktop-rs"
	default:
		return "/etc/remote-desktop-rs"
	}
}

// atomicWriteFile writes data to a temp file in dir and renames it over
// path, so a reader never observes a partially written config. Rename
// is atomic on POSIX and on Windows via MoveFileEx semantics.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cfg-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
