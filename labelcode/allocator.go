package labelcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sync"

	"kes/apperr"
)

const (
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength   = 4

	// MaxAttempts is the number of suffix draws per code before giving up.
	MaxAttempts = 10
)

// Registry is the persisted label set the allocator claims candidates from.
// Reserve claims a code and reports false if it was already taken.
type Registry interface {
	Reserve(ctx context.Context, code string) (bool, error)
}

// Allocator issues label codes of the form <scope>/ET<NN>_<SUFFIX>.
type Allocator struct {
	registry Registry
	random   io.Reader
}

// NewAllocator returns an allocator backed by crypto/rand. A nil registry
// restricts the uniqueness check to the current batch.
func NewAllocator(registry Registry) *Allocator {
	return &Allocator{registry: registry, random: rand.Reader}
}

// WithRandom replaces the random source, mostly for tests.
func (a *Allocator) WithRandom(r io.Reader) *Allocator {
	return &Allocator{registry: a.registry, random: r}
}

// Allocate returns count distinct codes for scopePrefix, numbered from 1.
// Either all codes are returned or none. Every returned code has been
// reserved in the registry.
func (a *Allocator) Allocate(ctx context.Context, scopePrefix string, count int) ([]string, error) {
	if count <= 0 {
		return nil, apperr.Validation("Le nombre d'étiquettes doit être supérieur à 0 (reçu %d)", count)
	}
	if scopePrefix == "" {
		return nil, apperr.Validation("Le préfixe de l'étiquette est requis")
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for i := 1; i <= count; i++ {
		code, err := a.next(ctx, scopePrefix, i, seen)
		if err != nil {
			return nil, err
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (a *Allocator) next(ctx context.Context, scopePrefix string, number int, seen map[string]struct{}) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		suffix, err := a.suffix()
		if err != nil {
			return "", fmt.Errorf("draw label suffix: %w", err)
		}
		candidate := Format(scopePrefix, number, suffix)
		if _, dup := seen[candidate]; dup {
			continue
		}
		if a.registry != nil {
			free, err := a.registry.Reserve(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("reserve label code %s: %w", candidate, err)
			}
			if !free {
				continue
			}
		}
		return candidate, nil
	}
	return "", apperr.Exhausted("impossible de générer un code d'étiquette unique pour %s/ET%02d après %d tentatives",
		scopePrefix, number, MaxAttempts)
}

func (a *Allocator) suffix() (string, error) {
	buf := make([]byte, suffixLength)
	base := big.NewInt(int64(len(suffixAlphabet)))
	for i := range buf {
		n, err := rand.Int(a.random, base)
		if err != nil {
			return "", err
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Format builds a label code from its parts.
func Format(scopePrefix string, number int, suffix string) string {
	return fmt.Sprintf("%s/ET%02d_%s", scopePrefix, number, suffix)
}

// MemoryRegistry is an in-process Registry. Reserved codes stay taken.
type MemoryRegistry struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewMemoryRegistry(codes ...string) *MemoryRegistry {
	r := &MemoryRegistry{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		r.codes[c] = struct{}{}
	}
	return r
}

func (r *MemoryRegistry) Exists(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[code]
	return ok, nil
}

func (r *MemoryRegistry) Reserve(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code]; ok {
		return false, nil
	}
	r.codes[code] = struct{}{}
	return true, nil
}
