// Package util provides shared helpers for task IDs.
package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultShortIDLength is how many characters of a task ID are shown in listings.
	DefaultShortIDLength = 8
	// MaxAmbiguousCandidates caps the candidates listed in an ambiguity error.
	MaxAmbiguousCandidates = 5
)

// Errors returned by ID resolution.
var (
	ErrAmbiguousID = errors.New("ambiguous ID prefix")
	ErrNotFound    = errors.New("not found")
)

// ShortID returns the first n characters of id (DefaultShortIDLength when n <= 0).
//
//	ShortID("3f2a9c1e-7b4d-4e8a-9c1f-2b3d4e5f6a7b", 0) → "3f2a9c1e"
func ShortID(id string, n int) string {
	if n <= 0 {
		n = DefaultShortIDLength
	}
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// IDPrefixResolver finds task IDs by prefix. Implemented by the sqlite store;
// ResolverFunc adapts the in-memory registry.
type IDPrefixResolver interface {
	FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ResolveTaskID resolves a full task ID or a unique prefix of one.
// An exact match wins even when it is also a prefix of other IDs.
func ResolveTaskID(ctx context.Context, resolver IDPrefixResolver, idOrPrefix string) (string, error) {
	idOrPrefix = strings.ToLower(strings.TrimSpace(idOrPrefix))
	if idOrPrefix == "" {
		return "", fmt.Errorf("task ID: %w", ErrNotFound)
	}

	candidates, err := resolver.FindTaskIDsByPrefix(ctx, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("find task IDs: %w", err)
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("task with prefix %q: %w", idOrPrefix, ErrNotFound)
	case 1:
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c == idOrPrefix {
			return c, nil
		}
	}
	shown := candidates
	if len(shown) > MaxAmbiguousCandidates {
		shown = shown[:MaxAmbiguousCandidates]
	}
	return "", fmt.Errorf("%w: prefix %q matches %d tasks: %v",
		ErrAmbiguousID, idOrPrefix, len(candidates), shown)
}

// ResolverFunc adapts a plain prefix lookup to IDPrefixResolver.
type ResolverFunc func(prefix string) []string

// FindTaskIDsByPrefix calls f.
func (f ResolverFunc) FindTaskIDsByPrefix(_ context.Context, prefix string) ([]string, error) {
	return f(prefix), nil
}
