// Package filetransfer implements StartFileTransfer/FileData handling:
// chunked upload with a per-transfer sparse write and directory-traversal
// rejection, adapted to the wire protocol's two-command transfer shape.
package filetransfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultMaxTransferSize caps a single transfer.
const DefaultMaxTransferSize = 500 * 1024 * 1024

// Config configures a Manager.
type Config struct {
	ReceiveDir      string
	MaxTransferSize int64
}

// Status reports a transfer's progress.
type Status struct {
	TransferID string
	Received   int64
	Total      int64
	Complete   bool
}

var (
	ErrUnknownTransfer  = errors.New("filetransfer: unknown transfer id")
	ErrInvalidFilename  = errors.New("filetransfer: invalid filename")
	ErrSizeExceedsLimit = errors.New("filetransfer: declared size exceeds limit")
	ErrOffsetOutOfRange = errors.New("filetransfer: offset out of range")
	ErrExceedsDeclared  = errors.New("filetransfer: write exceeds declared size")
)

type incomingTransfer struct {
	name     string
	path     string
	size     int64
	received int64
	file     *os.File
}

// Manager tracks in-flight uploads to a fixed receive directory.
type Manager struct {
	cfg Config

	mu        sync.Mutex
	transfers map[string]*incomingTransfer
}

// New creates a Manager rooted at cfg.ReceiveDir (os.TempDir() if empty).
func New(cfg Config) *Manager {
	if cfg.MaxTransferSize <= 0 {
		cfg.MaxTransferSize = DefaultMaxTransferSize
	}
	if cfg.ReceiveDir == "" {
		cfg.ReceiveDir = os.TempDir()
	}
	return &Manager{cfg: cfg, transfers: make(map[string]*incomingTransfer)}
}

// Start begins a new transfer, creating the destination file. A
// filename containing ".." or an absolute-path marker (leading slash or
// backslash, or a drive letter) is rejected; otherwise it is reduced to
// its base name and the resolved path is checked against the receive
// directory with an absolute-path prefix check.
func (m *Manager) Start(transferID, filename string, size int64) (Status, error) {
	if transferID == "" {
		return Status{}, fmt.Errorf("filetransfer: missing transfer id")
	}
	if size > m.cfg.MaxTransferSize {
		return Status{}, ErrSizeExceedsLimit
	}

	if strings.Contains(filename, "..") || filepath.IsAbs(filename) ||
		strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, `\`) ||
		(len(filename) >= 2 && filename[1] == ':') {
		return Status{}, ErrInvalidFilename
	}

	safeName := filepath.Base(filename)
	if safeName == "." || safeName == ".." || safeName == string(filepath.Separator) || safeName == "" {
		return Status{}, ErrInvalidFilename
	}
	if strings.ContainsAny(safeName, `/\`) || strings.HasPrefix(safeName, ".") {
		return Status{}, ErrInvalidFilename
	}

	if err := os.MkdirAll(m.cfg.ReceiveDir, 0o755); err != nil {
		return Status{}, fmt.Errorf("filetransfer: create receive dir: %w", err)
	}

	absReceiveDir, err := filepath.Abs(m.cfg.ReceiveDir)
	if err != nil {
		return Status{}, fmt.Errorf("filetransfer: resolve receive dir: %w", err)
	}
	filePath := filepath.Join(absReceiveDir, safeName)
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return Status{}, fmt.Errorf("filetransfer: resolve file path: %w", err)
	}
	if !strings.HasPrefix(absFilePath, absReceiveDir+string(filepath.Separator)) {
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	file, err := os.Create(absFilePath)
	if err != nil {
		return Status{}, fmt.Errorf("filetransfer: create file: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.transfers[transferID]; ok {
		existing.file.Close()
	}
	m.transfers[transferID] = &incomingTransfer{name: safeName, path: absFilePath, size: size, file: file}
	m.mu.Unlock()

	return Status{TransferID: transferID, Received: 0, Total: size, Complete: false}, nil
}

// Write applies one chunk at offset, closing and finalizing the
// transfer when final is true.
func (m *Manager) Write(transferID string, offset int64, data []byte, final bool) (Status, error) {
	m.mu.Lock()
	transfer, ok := m.transfers[transferID]
	if !ok {
		m.mu.Unlock()
		return Status{}, ErrUnknownTransfer
	}

	if offset < 0 || offset > transfer.size {
		m.mu.Unlock()
		return Status{}, ErrOffsetOutOfRange
	}
	if offset+int64(len(data)) > transfer.size {
		m.mu.Unlock()
		return Status{}, ErrExceedsDeclared
	}

	if len(data) > 0 {
		if _, err := transfer.file.WriteAt(data, offset); err != nil {
			m.mu.Unlock()
			return Status{}, fmt.Errorf("filetransfer: write: %w", err)
		}
		if offset+int64(len(data)) > transfer.received {
			transfer.received = offset + int64(len(data))
		}
	}

	status := Status{TransferID: transferID, Received: transfer.received, Total: transfer.size}

	if final {
		delete(m.transfers, transferID)
		m.mu.Unlock()
		if err := transfer.file.Close(); err != nil {
			return Status{}, fmt.Errorf("filetransfer: close: %w", err)
		}
		status.Complete = true
		return status, nil
	}

	m.mu.Unlock()
	return status, nil
}

// Abort discards an in-flight transfer and removes its partial file.
func (m *Manager) Abort(transferID string) {
	m.mu.Lock()
	transfer, ok := m.transfers[transferID]
	if ok {
		delete(m.transfers, transferID)
	}
	m.mu.Unlock()
	if ok {
		transfer.file.Close()
		os.Remove(transfer.path)
	}
}

// Close closes the file of every in-flight transfer and forgets the
// transfers; partial files are left on disk.
func (m *Manager) Close() {
	m.mu.Lock()
	transfers := m.transfers
	m.transfers = make(map[string]*incomingTransfer)
	m.mu.Unlock()
	for _, t := range transfers {
		t.file.Close()
	}
}
