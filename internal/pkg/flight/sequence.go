package flight

import "sync"

// Sequence tags operations in start order. Accept lets through only results
// newer than the last accepted one, so for f1 started before f2 a late f1 can
// never overwrite f2.
type Sequence struct {
	mu       sync.Mutex
	issued   uint64
	accepted uint64
}

func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

func (s *Sequence) Accept(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == 0 || seq > s.issued || seq <= s.accepted {
		return false
	}
	s.accepted = seq
	return true
}

// Accepted returns the last accepted tag, zero when none.
func (s *Sequence) Accepted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}
