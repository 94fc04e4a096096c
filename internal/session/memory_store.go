package session

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/giftcart-service/internal/domain"
)

// CleanupInterval is how often expired sessions are dropped
const CleanupInterval = 30 * time.Second

type entry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryStore implements Store with an in-process map and idle expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return newMemoryStore(ttl, CleanupInterval, time.Now)
}

func newMemoryStore(ttl, interval time.Duration, now func() time.Time) *MemoryStore {
	s := &MemoryStore{
		sessions:    make(map[string]*entry),
		ttl:         ttl,
		now:         now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(interval)

	return s
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireSessions()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || s.now().After(e.expiresAt) {
		return nil, ErrSessionNotFound
	}
	return cloneSession(&e.session), nil
}

func (s *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = &entry{
		session:   *cloneSession(sess),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneSession(src *domain.Session) *domain.Session {
	dst := *src
	dst.Lines = make([]domain.CartLine, len(src.Lines))
	copy(dst.Lines, src.Lines)
	return &dst
}
