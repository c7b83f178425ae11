package authoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/lock"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

// RegistrySource builds the provider registry of a user from their stored
// credentials.
type RegistrySource interface {
	RegistryFor(ctx context.Context, userID uuid.UUID) (*llm.Registry, error)
}

type ManagerDeps struct {
	Log        *logger.Logger
	Config     Config
	Dev        repos.DevelopmentRepo
	Posts      repos.PostRepo
	Locker     lock.Locker
	Registries RegistrySource
	Metrics    *observability.Metrics
}

type workflowKey struct {
	userID uuid.UUID
	postID uuid.UUID
}

// Manager holds the open workflows, one per (user, post).
type Manager struct {
	log  *logger.Logger
	deps ManagerDeps
	cfg  Config

	mu        sync.Mutex
	workflows map[workflowKey]*Workflow
	now       func() time.Time
}

func NewManager(d ManagerDeps) *Manager {
	if d.Locker == nil {
		d.Locker = lock.NewMemoryLocker()
	}
	return &Manager{
		log:       d.Log.With("service", "WorkflowManager"),
		deps:      d,
		cfg:       d.Config.withDefaults(),
		workflows: map[workflowKey]*Workflow{},
		now:       time.Now,
	}
}

// Open returns the user's workflow for postID, loading or creating the
// development record on first open.
func (m *Manager) Open(ctx context.Context, s types.Session, postID uuid.UUID) (*Workflow, error) {
	if !s.Authenticated() {
		return nil, ErrForbidden
	}
	post, err := m.deps.Posts.GetByID(ctx, nil, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.UserID != s.UserID {
		return nil, ErrForbidden
	}

	key := workflowKey{userID: s.UserID, postID: postID}
	m.mu.Lock()
	if w, ok := m.workflows[key]; ok {
		m.mu.Unlock()
		if _, err := w.View(); err == nil {
			return w, nil
		}
		m.forget(key, w)
	} else {
		m.mu.Unlock()
	}

	var reg *llm.Registry
	if m.deps.Registries != nil {
		reg, err = m.deps.Registries.RegistryFor(ctx, s.UserID)
		if err != nil {
			return nil, fmt.Errorf("load providers: %w", err)
		}
	}
	w := newWorkflow(workflowDeps{
		Log:      m.deps.Log,
		Config:   m.cfg,
		Dev:      m.deps.Dev,
		Posts:    m.deps.Posts,
		Locker:   m.deps.Locker,
		Registry: reg,
		Metrics:  m.deps.Metrics,
	}, s.UserID, postID)
	w.now = m.now
	w.lastUsed = m.now()
	if err := w.load(ctx); err != nil {
		_ = w.Close(ctx, false)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.workflows[key]; ok {
		// Lost a race with a concurrent Open of the same post.
		_ = w.Close(ctx, false)
		return existing, nil
	}
	m.workflows[key] = w
	m.deps.Metrics.SetOpenWorkflows(len(m.workflows))
	m.log.Info("Opened development workflow", "post_id", postID.String(), "providers", len(w.registry.ListAvailable()))
	return w, nil
}

// Get returns an open workflow or ErrWorkflowNotOpen.
func (m *Manager) Get(s types.Session, postID uuid.UUID) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[workflowKey{userID: s.UserID, postID: postID}]
	if !ok {
		return nil, ErrWorkflowNotOpen
	}
	return w, nil
}

// Close tears down the user's workflow for postID. Closing a workflow that
// is not open is a no-op.
func (m *Manager) Close(ctx context.Context, s types.Session, postID uuid.UUID, flush bool) error {
	key := workflowKey{userID: s.UserID, postID: postID}
	m.mu.Lock()
	w, ok := m.workflows[key]
	delete(m.workflows, key)
	m.deps.Metrics.SetOpenWorkflows(len(m.workflows))
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return w.Close(ctx, flush)
}

// CloseAll flushes and closes every open workflow.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	open := m.workflows
	m.workflows = map[workflowKey]*Workflow{}
	m.deps.Metrics.SetOpenWorkflows(0)
	m.mu.Unlock()
	var errs []error
	for _, w := range open {
		if err := w.Close(ctx, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EvictIdle flushes and closes workflows untouched for longer than the idle
// TTL and returns how many were closed.
func (m *Manager) EvictIdle(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)
	m.mu.Lock()
	var stale []*Workflow
	for key, w := range m.workflows {
		if w.idleSince().Before(cutoff) {
			stale = append(stale, w)
			delete(m.workflows, key)
		}
	}
	m.deps.Metrics.SetOpenWorkflows(len(m.workflows))
	m.mu.Unlock()
	for _, w := range stale {
		if err := w.Close(ctx, true); err != nil {
			m.log.Warn("Idle workflow flush failed", "post_id", w.PostID().String(), "error", err)
		}
	}
	if len(stale) > 0 {
		m.log.Info("Evicted idle workflows", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle workflows until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.CloseAll(shutdownCtx); err != nil {
				m.log.Warn("Closing workflows on shutdown", "error", err)
			}
			cancel()
			return
		case <-t.C:
			m.EvictIdle(ctx)
		}
	}
}

// RefreshProviders rebuilds the registry of every open workflow of userID,
// typically after the user edited their credentials.
func (m *Manager) RefreshProviders(ctx context.Context, userID uuid.UUID) error {
	if m.deps.Registries == nil {
		return nil
	}
	m.mu.Lock()
	var open []*Workflow
	for key, w := range m.workflows {
		if key.userID == userID {
			open = append(open, w)
		}
	}
	m.mu.Unlock()
	if len(open) == 0 {
		return nil
	}
	for _, w := range open {
		reg, err := m.deps.Registries.RegistryFor(ctx, userID)
		if err != nil {
			return fmt.Errorf("load providers: %w", err)
		}
		w.replaceRegistry(reg)
	}
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workflows)
}

func (m *Manager) forget(key workflowKey, w *Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workflows[key] == w {
		delete(m.workflows, key)
	}
}
