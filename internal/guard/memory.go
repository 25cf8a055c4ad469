package guard

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	token   uint64
	expires time.Time
}

// Memory is an in-process Guard for single-instance deployments and tests.
type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	next   uint64
	leases map[string]lease
	now    func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:    ttl,
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

func (m *Memory) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.leases[key]; ok && (m.ttl <= 0 || now.Before(l.expires)) {
		return nil, ErrInFlight
	}
	m.next++
	token := m.next
	m.leases[key] = lease{token: token, expires: now.Add(m.ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			// an expired lease may already belong to someone else
			if l, ok := m.leases[key]; ok && l.token == token {
				delete(m.leases, key)
			}
			m.mu.Unlock()
		})
	}, nil
}
