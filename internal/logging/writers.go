package logging

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

var runLog = &switchWriter{}

// levelFilter drops records below min. zerolog.MultiLevelWriter hands each
// writer the record level through WriteLevel.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

// switchWriter forwards to a writer that can be swapped at runtime. With no
// target it discards.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
