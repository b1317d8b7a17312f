package store

import (
	"sync"
	"time"
)

// genAttempts bounds the collision-retry loop for generated codes. Collisions
// are vanishingly rare at the practical key space size, so hitting the bound
// means the generator is misbehaving rather than the space being full.
const genAttempts = 10

// Mapping is one live (or lapsed) shortcode slot.
type Mapping struct {
	Code      string
	TargetURL string
	ExpiresAt time.Time
}

// Live reports whether the mapping has not yet expired at instant now.
func (m Mapping) Live(now time.Time) bool {
	return m.ExpiresAt.After(now)
}

// CodeGenerator produces candidate shortcodes for auto-assigned slots.
type CodeGenerator interface {
	Generate() string
}

// Registry owns the shortcode -> Mapping table. A code is unique only while
// its mapping is live; an expired occupant is silently replaced on the next
// Create for that code. Expiry is evaluated lazily against the injected
// clock, there is no background sweep and slots are never reclaimed.
type Registry struct {
	mu       sync.RWMutex
	mappings map[string]Mapping
	gen      CodeGenerator
	now      func() time.Time
}

// NewRegistry builds an empty registry. A nil now falls back to time.Now.
func NewRegistry(gen CodeGenerator, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		mappings: make(map[string]Mapping),
		gen:      gen,
		now:      now,
	}
}

// Create inserts a mapping for code, or for a generated code when code is
// empty. The live-collision check and the insert happen under one write
// lock: of two concurrent creates for the same code exactly one wins and the
// loser sees ErrCodeInUse. The replaced result reports whether an expired occupant
// was overwritten, so the caller can retire its stale click history.
func (r *Registry) Create(targetURL string, ttl time.Duration, code string) (m Mapping, replaced bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if code == "" {
		code, err = r.pickFreeLocked(now)
		if err != nil {
			return Mapping{}, false, err
		}
	}

	prior, occupied := r.mappings[code]
	if occupied && prior.Live(now) {
		return Mapping{}, false, ErrCodeInUse
	}

	m = Mapping{
		Code:      code,
		TargetURL: targetURL,
		ExpiresAt: now.Add(ttl),
	}
	r.mappings[code] = m
	return m, occupied, nil
}

// pickFreeLocked generates candidates until one does not collide with a live
// mapping. Caller holds the write lock, so a returned code cannot be taken
// before Create inserts it.
func (r *Registry) pickFreeLocked(now time.Time) (string, error) {
	for i := 0; i < genAttempts; i++ {
		code := r.gen.Generate()
		if prior, ok := r.mappings[code]; ok && prior.Live(now) {
			continue
		}
		return code, nil
	}
	return "", ErrGenerationExhausted
}

// Resolve returns the live mapping for code. An expired entry is left in
// place for stats queries and reported as ErrExpired, which is distinct from
// ErrNotFound: the identity existed, it just lapsed.
func (r *Registry) Resolve(code string) (Mapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[code]
	if !ok {
		return Mapping{}, ErrNotFound
	}
	if !m.Live(r.now()) {
		return Mapping{}, ErrExpired
	}
	return m, nil
}

// Get returns the mapping for code whether or not it has expired. Only a
// slot that never existed (or was since overwritten) yields ErrNotFound.
func (r *Registry) Get(code string) (Mapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[code]
	if !ok {
		return Mapping{}, ErrNotFound
	}
	return m, nil
}

// Len reports the number of slots, live or lapsed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}
