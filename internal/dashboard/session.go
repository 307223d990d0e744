package dashboard

import "sync"

// Session is the authentication boundary the controller depends on. Sign-in
// and credential handling live elsewhere; the controller only needs to know
// whether calls are allowed and when that stops being true.
type Session interface {
	IsAuthenticated() bool
	// OnInvalidated registers fn to run synchronously when the session ends.
	OnInvalidated(fn func())
}

// LocalSession is an in-process Session that starts authenticated and ends on
// SignOut.
type LocalSession struct {
	mu            sync.Mutex
	authenticated bool
	callbacks     []func()
}

func NewLocalSession() *LocalSession {
	return &LocalSession{authenticated: true}
}

func (s *LocalSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// OnInvalidated runs fn immediately if the session has already ended.
func (s *LocalSession) OnInvalidated(fn func()) {
	s.mu.Lock()
	if s.authenticated {
		s.callbacks = append(s.callbacks, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// SignOut ends the session. IsAuthenticated is false before any callback runs,
// and every callback has returned when SignOut returns. Repeated calls are
// no-ops.
func (s *LocalSession) SignOut() {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return
	}
	s.authenticated = false
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
