package testutil

import (
	"errors"
	"strings"
	"sync"
)

// ErrSinkClosed is returned by a RecordingSink after Fail was called.
var ErrSinkClosed = errors.New("testutil: sink closed")

// RecordingSink records every write as a separate fragment.
type RecordingSink struct {
	mu     sync.Mutex
	writes []string
	failed bool
}

// Write records p.
func (s *RecordingSink) Write(p []byte) (int, error) {
	return s.WriteString(string(p))
}

// WriteString records str.
func (s *RecordingSink) WriteString(str string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return 0, ErrSinkClosed
	}
	s.writes = append(s.writes, str)
	return len(str), nil
}

// Fail makes every later write return ErrSinkClosed.
func (s *RecordingSink) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
}

// Writes returns the recorded fragments in order.
func (s *RecordingSink) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	copy(out, s.writes)
	return out
}

// String returns every fragment concatenated.
func (s *RecordingSink) String() string {
	return strings.Join(s.Writes(), "")
}
