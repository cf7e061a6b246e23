package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// CookieStore keeps cookies in process memory. Expired cookies are invisible
// to reads and removed by DeleteExpired.
type CookieStore struct {
	mu      sync.RWMutex
	cookies map[string]domain.Cookie
	now     func() time.Time
}

func NewCookieStore() *CookieStore {
	return &CookieStore{
		cookies: make(map[string]domain.Cookie),
		now:     time.Now,
	}
}

func (s *CookieStore) All(_ context.Context) (map[string]string, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.cookies))
	for name, c := range s.cookies {
		if c.Expired(now) {
			continue
		}
		out[name] = c.Value
	}
	return out, nil
}

func (s *CookieStore) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	c, ok := s.cookies[name]
	s.mu.RUnlock()

	if !ok || c.Expired(s.now()) {
		return "", false, nil
	}
	return c.Value, true, nil
}

func (s *CookieStore) Set(_ context.Context, cookie domain.Cookie) error {
	s.mu.Lock()
	s.cookies[cookie.Name] = cookie
	s.mu.Unlock()
	return nil
}

func (s *CookieStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for name, c := range s.cookies {
		if c.Expired(now) {
			delete(s.cookies, name)
			deleted++
		}
	}
	return deleted, nil
}
