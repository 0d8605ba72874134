package game

import "sync"

// Store guards the authoritative Config behind a single readers/writer
// lock. API reads, snapshotting, and save writers take the read hold;
// mutations and the tick merge take the write hold. Nothing that suspends
// (subprocess waits, timers, network) may run inside either hold; the
// scheduler snapshots with Clone, probes against the clone, and commits
// with a short write section.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps an initial config.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// View runs fn under the read hold. fn must not retain the config.
func (s *Store) View(fn func(*Config)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.cfg)
}

// Update runs fn under the write hold. fn must not retain the config.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cfg)
}

// Snapshot deep-clones the config under the read hold.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Replace swaps the whole aggregate, used when loading a save. The new
// config is constructed before the hold is taken, so a failed load never
// disturbs current state.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}
