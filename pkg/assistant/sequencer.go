package assistant

import "sync"

// Token identifies one request issued through a Sequencer.
type Token uint64

// Sequencer discards responses that were superseded by a newer request.
// A page issues a token before each request and only applies the answer if
// the token is still the latest.
type Sequencer struct {
	mu     sync.Mutex
	latest Token
}

// Next issues a token, superseding every earlier one.
func (s *Sequencer) Next() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// Current reports whether t is the latest token.
func (s *Sequencer) Current(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t == s.latest
}

// Apply runs fn only if t is still the latest token and reports whether it ran.
// The check and fn run under the same lock, so a concurrent Next cannot slip
// in between.
func (s *Sequencer) Apply(t Token, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.latest {
		return false
	}
	fn()
	return true
}
