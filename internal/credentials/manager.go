package credentials

import (
	"log/slog"
	"sync"
)

// Manager is the single owner of the in-memory credential. All reads of
// the current token go through it, and it is the only component that
// mutates the store.
//
// Storage failures on Save and Clear are reported to the caller but the
// in-memory state is updated regardless, so the running session stays
// usable when the disk is not.
type Manager struct {
	mu     sync.RWMutex
	token  string
	store  Store
	logger *slog.Logger
}

// NewManager creates a credential manager backed by store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Load reads the persisted credential into memory. Idempotent, and never
// fails the caller: an absent token is a valid state and I/O failures are
// logged and swallowed.
func (m *Manager) Load() {
	token, err := m.store.Load()
	if err != nil {
		if err != ErrNotFound {
			m.logger.Warn("failed to load stored credentials", "error", err)
		}
		return
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	m.logger.Debug("session token restored from store")
}

// Save updates the in-memory credential and persists it. The in-memory
// update always happens; a storage failure is returned for reporting.
func (m *Manager) Save(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if err := m.store.Save(token); err != nil {
		m.logger.Warn("failed to persist session token", "error", err)
		return err
	}
	return nil
}

// Clear removes the in-memory and persisted credential. Called on logout
// and on any token rejection from the server.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear persisted session token", "error", err)
		return err
	}
	return nil
}

// Token returns the current in-memory token and whether one is present.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}
