package common

import (
	"strings"
	"sync"
)

// PauseView reports whether a module's circuit breaker is engaged.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the supplied module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseRegistry is the process-wide set of module circuit breakers. Each
// engine flips its own entry through its owner-gated Pause/Unpause methods.
// A registry built over a Store keeps its breakers in state, so they commit
// and revert with the surrounding transaction and survive restarts.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]bool
	store  Store
}

type pauseEntry struct {
	Paused bool
}

const pausePrefix = "pause"

// NewPauseRegistry constructs an in-memory registry with every module running.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]bool)}
}

// NewStoredPauseRegistry constructs a registry persisted through store.
func NewStoredPauseRegistry(store Store) *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]bool), store: store}
}

// IsPaused satisfies PauseView. A stored registry that cannot be read
// reports the module as paused.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	key := normalizeModule(module)
	if r.store != nil {
		entry := new(pauseEntry)
		ok, err := r.store.KVGet(Key(pausePrefix, []byte(key)), entry)
		if err != nil {
			return true
		}
		return ok && entry.Paused
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[key]
}

// SetPaused engages or releases the breaker for a module.
func (r *PauseRegistry) SetPaused(module string, paused bool) error {
	if r == nil {
		return nil
	}
	key := normalizeModule(module)
	if key == "" {
		return ErrInvalidNumber
	}
	if r.store != nil {
		if !paused {
			return r.store.KVDelete(Key(pausePrefix, []byte(key)))
		}
		return r.store.KVPut(Key(pausePrefix, []byte(key)), &pauseEntry{Paused: true})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if paused {
		r.paused[key] = true
		return nil
	}
	delete(r.paused, key)
	return nil
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
