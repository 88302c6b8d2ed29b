package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/promo-studio/internal/apperror"
)

// Config controls session lifetime.
type Config struct {
	// TTL is how long a session may sit idle before it is evicted. Zero
	// disables eviction.
	TTL time.Duration
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Manager is the registry of live sessions.
type Manager struct {
	config Config
	deps   Deps
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a registry. deps.Previews is created when nil so all
// sessions share one preview store; deps.Now defaults to time.Now.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Previews == nil {
		deps.Previews = NewPreviewStore()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Manager{
		config:   cfg,
		deps:     deps,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
}

// Previews returns the shared preview store.
func (m *Manager) Previews() *PreviewStore { return m.deps.Previews }

// Create opens a new session with the default template.
func (m *Manager) Create() *Session {
	id := xid.New().String()
	s := New(id, m.deps)

	m.mu.Lock()
	m.sessions[id] = s
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created", slog.String("session", id), slog.Int("active", total))
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	return s, nil
}

// Close closes and forgets the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperror.NotFound("session", id)
	}
	s.Close()
	m.logger.Info("session closed", slog.String("session", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start launches the idle-session janitor.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		if m.config.TTL <= 0 {
			return
		}
		m.logger.Info("starting session janitor",
			slog.Duration("ttl", m.config.TTL),
			slog.Duration("interval", m.config.SweepInterval),
		)
		m.wg.Add(1)
		go m.janitor()
	})
}

// Stop halts the janitor and closes every session.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("shutting down session manager")
		close(m.done)
		m.wg.Wait()

		m.mu.Lock()
		sessions := m.sessions
		m.sessions = make(map[string]*Session)
		m.mu.Unlock()
		for _, s := range sessions {
			s.Close()
		}
	})
}

func (m *Manager) janitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// EvictIdle closes every session idle for longer than the TTL and returns
// how many were closed.
func (m *Manager) EvictIdle() int {
	if m.config.TTL <= 0 {
		return 0
	}
	cutoff := m.deps.Now().Add(-m.config.TTL)

	// Holding the write lock keeps Get from handing out a session that is
	// being evicted; closeIfIdle re-checks against requests already running.
	m.mu.Lock()
	var evicted []string
	for id, s := range m.sessions {
		if s.closeIfIdle(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	m.mu.Unlock()

	for _, id := range evicted {
		m.logger.Info("evicted idle session", slog.String("session", id))
	}
	return len(evicted)
}
