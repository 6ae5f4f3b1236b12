// Package profile implements the process-wide active chunking profile:
// built-in presets plus an optional config-file override, with lock-free
// reads via a copy-on-write snapshot pointer (§4.6, §9 "Global mutable
// state").
package profile

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oho/chunking-daemon/internal/chunk"
)

// Builtins are the preset profiles defined by spec.md §3.
func Builtins() []chunk.Profile {
	return []chunk.Profile{
		{
			Name:        "default",
			Description: "balanced chunk size for general text",
			Config:      chunk.Config{ChunkSize: 512, ChunkOverlap: 50, MinCharsPerSentence: 12},
		},
		{
			Name:        "small",
			Description: "smaller chunks for fine-grained retrieval",
			Config:      chunk.Config{ChunkSize: 256, ChunkOverlap: 25, MinCharsPerSentence: 12},
		},
		{
			Name:        "large",
			Description: "larger chunks for broader context windows",
			Config:      chunk.Config{ChunkSize: 1024, ChunkOverlap: 100, MinCharsPerSentence: 12},
		},
		{
			Name:        "code",
			Description: "tuned for source code chunk-point packing",
			Config:      chunk.Config{ChunkSize: 768, ChunkOverlap: 64, MinCharsPerSentence: 12},
		},
	}
}

// snapshot is the immutable, copy-on-write view swapped under Store.mu.
type snapshot struct {
	profiles map[string]chunk.Profile
	active   string
}

// Store holds the named profiles and tracks which one is active. Reads go
// through an atomic.Pointer so concurrent job submissions never block on a
// profile read; writes (adding a profile, changing the active one) swap the
// pointer under a write lock.
type Store struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewStore builds a Store seeded with the built-in profiles plus any extra
// profiles supplied (e.g. loaded from a profile config file), with
// activeName as the initially active profile.
func NewStore(extra []chunk.Profile, activeName string) (*Store, error) {
	profiles := make(map[string]chunk.Profile)
	for _, p := range Builtins() {
		profiles[p.Name] = p
	}
	for _, p := range extra {
		profiles[p.Name] = p
	}
	if activeName == "" {
		activeName = "default"
	}
	if _, ok := profiles[activeName]; !ok {
		return nil, fmt.Errorf("unknown active profile: %s", activeName)
	}
	s := &Store{}
	s.snap.Store(&snapshot{profiles: profiles, active: activeName})
	return s, nil
}

// Active returns the currently active profile. Lock-free.
func (s *Store) Active() chunk.Profile {
	snap := s.snap.Load()
	return snap.profiles[snap.active]
}

// Get returns a named profile.
func (s *Store) Get(name string) (chunk.Profile, bool) {
	snap := s.snap.Load()
	p, ok := snap.profiles[name]
	return p, ok
}

// List returns every known profile.
func (s *Store) List() []chunk.Profile {
	snap := s.snap.Load()
	out := make([]chunk.Profile, 0, len(snap.profiles))
	for _, p := range snap.profiles {
		out = append(out, p)
	}
	return out
}

// SetActive changes the active profile by name. Jobs already running keep
// the config snapshot they started with (§4.6); only jobs submitted after
// this call observe the change.
func (s *Store) SetActive(name string) (chunk.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	p, ok := old.profiles[name]
	if !ok {
		return chunk.Profile{}, fmt.Errorf("unknown profile: %s", name)
	}
	next := &snapshot{profiles: old.profiles, active: name}
	s.snap.Store(next)
	return p, nil
}

// Upsert adds or replaces a named profile, without changing which profile
// is active.
func (s *Store) Upsert(p chunk.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	profiles := make(map[string]chunk.Profile, len(old.profiles)+1)
	for k, v := range old.profiles {
		profiles[k] = v
	}
	profiles[p.Name] = p
	s.snap.Store(&snapshot{profiles: profiles, active: old.active})
}
