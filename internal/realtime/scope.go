package realtime

import "sync"

// Scopes tracks the subscriptions a session holds, keyed by purpose.
// Acquiring a held key is a no-op; releasing closes the subscription exactly once.
type Scopes struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

func NewScopes() *Scopes {
	return &Scopes{subs: make(map[string]*Subscription)}
}

// Acquire opens a subscription under key unless one is already held. It reports whether open was called.
func (s *Scopes) Acquire(key string, open func() (*Subscription, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[key]; ok {
		return false, nil
	}
	sub, err := open()
	if err != nil {
		return false, err
	}
	s.subs[key] = sub
	return true, nil
}

func (s *Scopes) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[key]
	return ok
}

// Release closes the subscription held under key. It reports whether one was held.
func (s *Scopes) Release(key string) bool {
	s.mu.Lock()
	sub, ok := s.subs[key]
	delete(s.subs, key)
	s.mu.Unlock()

	if ok {
		sub.Close()
	}
	return ok
}

// ReleaseIf releases key only while it still holds sub. A hook for a replaced subscription
// leaves the newer one alone.
func (s *Scopes) ReleaseIf(key string, sub *Subscription) bool {
	s.mu.Lock()
	held, ok := s.subs[key]
	ok = ok && held == sub
	if ok {
		delete(s.subs, key)
	}
	s.mu.Unlock()

	if ok {
		sub.Close()
	}
	return ok
}

func (s *Scopes) ReleaseAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Scopes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
