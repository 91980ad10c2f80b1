package model

import "sync"

// CommitState holds the last commit identifier observed for one
// subscription. The mutex keeps overlapping ticks from racing on the value;
// it does not serialize the ticks themselves.
type CommitState struct {
	mu  sync.Mutex
	sha string
	set bool
}

// Get returns the stored identifier and whether one has been observed yet
func (s *CommitState) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sha, s.set
}

// Swap stores sha and returns the previous identifier
func (s *CommitState) Swap(sha string) (prev string, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed = s.sha, s.set
	s.sha, s.set = sha, true
	return prev, existed
}
