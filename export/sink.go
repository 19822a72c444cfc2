package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sink persists a finished export file.
type Sink interface {
	// Save stores data under filename and returns where it went.
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// DirSink writes files into a directory.
type DirSink struct {
	Dir string
}

// Save writes through a temp file and renames it, so a failed export never
// leaves a partial file behind.
func (s DirSink) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("export: invalid filename %q", filename)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("export: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("export: save %s: %w", name, err)
	}
	return path, nil
}

// File is one file held by a MemorySink.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MemorySink keeps files in memory.
type MemorySink struct {
	mu    sync.Mutex
	files []File
}

func (s *MemorySink) Save(_ context.Context, filename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, File{Name: filename, ContentType: contentType, Data: append([]byte(nil), data...)})
	return "memory:" + filename, nil
}

// Files returns the saved files in order.
func (s *MemorySink) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

// Last returns the most recent file, if any.
func (s *MemorySink) Last() (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) == 0 {
		return File{}, false
	}
	return s.files[len(s.files)-1], true
}
