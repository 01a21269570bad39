package event

import (
	"fmt"
	"io"
	"sync"
)

// serializedWriter uses a shared lock to serialize writes to its underlying
// writer.  Multiple sinks may share one stderr and their entries must not
// interleave.
type serializedWriter struct {
	l *sync.Mutex
	w io.Writer
}

func (s *serializedWriter) Write(p []byte) (int, error) {
	const op = "event.(serializedWriter).Write"
	if s.l == nil {
		return 0, fmt.Errorf("%s: missing lock: %w", op, ErrInvalidParameter)
	}
	if s.w == nil {
		return 0, fmt.Errorf("%s: missing writer: %w", op, ErrInvalidParameter)
	}
	s.l.Lock()
	defer s.l.Unlock()
	return s.w.Write(p)
}
