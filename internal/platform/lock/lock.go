// Package lock guards a workflow's single in-flight generation. The redis
// implementation spans API replicas; the memory one serves single-process
// and test deployments.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var ErrBusy = errors.New("lock held")

type Locker interface {
	// TryAcquire takes key for at most ttl, or fails fast with ErrBusy.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
}

// Lease is a held lock. Release is idempotent.
type Lease struct {
	Key   string
	token string
	once  sync.Once
	free  func(ctx context.Context, key, token string) error
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() { err = l.free(ctx, l.Key, l.token) })
	return err
}

func newToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type memoryEntry struct {
	token   string
	expires time.Time
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryLocker() Locker {
	return &memoryLocker{held: map[string]memoryEntry{}, now: time.Now}
}

func (m *memoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, ErrBusy
	}
	tok := newToken()
	m.held[key] = memoryEntry{token: tok, expires: now.Add(ttl)}
	return &Lease{Key: key, token: tok, free: m.release}, nil
}

func (m *memoryLocker) release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.held[key]; ok && e.token == token {
		delete(m.held, key)
	}
	return nil
}
