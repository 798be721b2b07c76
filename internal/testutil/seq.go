package testutil

import "sync"

// SeqSource hands out journal sequence numbers for tests that call a store
// directly instead of going through engine.Processor.
//
// Unlike engine.Clock it can be reset, so one scenario can run twice with
// identical seq values.
type SeqSource struct {
	mu  sync.Mutex
	seq int64
}

// Next increments and returns the next sequence number. The first call
// returns 1.
func (s *SeqSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last returned sequence number.
func (s *SeqSource) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset makes the next call to Next return 1 again.
func (s *SeqSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// ConstantID returns the same request id for every command, so journals of
// the same scenario are byte-identical. Implements engine.RequestIDGenerator.
type ConstantID string

// Generate returns the id, or "test-request" when empty.
func (c ConstantID) Generate() string {
	if c == "" {
		return "test-request"
	}
	return string(c)
}
