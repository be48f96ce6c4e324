// Package sink owns the run directory and the one-file-per-target output.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JNickson/k8s-tail/internal/targets"
)

// Manager maps targets to append-mode log files inside the run directory.
// The directory itself is created lazily on the first open. Files are
// opened at most once at a time; each open file is written by exactly one
// stream goroutine, so only the registry needs locking.
type Manager struct {
	dir string

	mu      sync.Mutex
	created bool
	open    map[string]*File
}

func NewManager(dir string) *Manager {
	return &Manager{
		dir:  dir,
		open: make(map[string]*File),
	}
}

// Dir returns the run directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Open creates (or reopens for append) the target's log file. A second open
// for the same target while the first is still active is refused, which
// keeps every file single-writer.
func (m *Manager) Open(target targets.Target) (*File, error) {
	name := target.LogFileName()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, active := m.open[name]; active {
		return nil, fmt.Errorf("log file %s already has a writer", name)
	}

	if err := m.ensureDirLocked(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(m.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}

	file := &File{manager: m, name: name, f: f}
	m.open[name] = file
	return file, nil
}

// CloseAll closes every file that is still open. Safe to call repeatedly;
// it must complete before an ephemeral run directory is deleted.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	files := make([]*File, 0, len(m.open))
	for _, f := range m.open {
		files = append(files, f)
	}
	m.mu.Unlock()

	var firstErr error
	for _, f := range files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenCount reports how many files currently have a writer.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

func (m *Manager) ensureDirLocked() error {
	if m.created {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", m.dir, err)
	}
	m.created = true
	return nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	delete(m.open, name)
	m.mu.Unlock()
}

// File is one target's open log file. Closing it releases the writer slot
// so a replacement stream may append to the same file later.
type File struct {
	manager *Manager
	name    string

	closeOnce sync.Once
	closeErr  error
	f         *os.File
}

func (f *File) Write(p []byte) (int, error) {
	return f.f.Write(p)
}

// WriteLine appends one log line with a trailing newline.
func (f *File) WriteLine(line string) error {
	if _, err := f.f.WriteString(line); err != nil {
		return err
	}
	_, err := f.f.WriteString("\n")
	return err
}

func (f *File) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.f.Close()
		f.manager.release(f.name)
	})
	return f.closeErr
}

// Name returns the file name relative to the run directory.
func (f *File) Name() string {
	return f.name
}
