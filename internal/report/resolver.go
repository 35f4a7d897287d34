package report

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// NameResolver maps opaque user IDs to display names for report rows.
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, userID string) (string, error)
}

// FallbackName is used when no display name can be resolved.
func FallbackName(userID string) string {
	return fmt.Sprintf("User %s", userID)
}

// Registry is an in-memory NameResolver fed by the gateway: presence events
// may carry a display name, and the last seen one wins.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewRegistry creates an empty name registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

// Set records a display name for a user. Empty names are ignored.
func (r *Registry) Set(userID, name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.names[userID] = name
	r.mu.Unlock()
}

// ResolveDisplayName returns the recorded name or an error when unknown.
func (r *Registry) ResolveDisplayName(_ context.Context, userID string) (string, error) {
	r.mu.RLock()
	name, ok := r.names[userID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no display name for %s", userID)
	}
	return name, nil
}

// CachedResolver wraps a NameResolver with an LRU cache so repeated report
// builds do not hit a slow upstream resolver for the same users.
type CachedResolver struct {
	inner NameResolver
	cache *lru.Cache[string, string]
}

// NewCachedResolver creates a caching wrapper with the given capacity.
func NewCachedResolver(inner NameResolver, size int) (*CachedResolver, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create name cache: %w", err)
	}
	return &CachedResolver{inner: inner, cache: cache}, nil
}

// ResolveDisplayName consults the cache first, then the wrapped resolver.
func (c *CachedResolver) ResolveDisplayName(ctx context.Context, userID string) (string, error) {
	if name, ok := c.cache.Get(userID); ok {
		return name, nil
	}

	name, err := c.inner.ResolveDisplayName(ctx, userID)
	if err != nil {
		return "", err
	}

	c.cache.Add(userID, name)
	return name, nil
}
