package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store resolves named secrets.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// DefaultStage is used when no stage is configured.
const DefaultStage = "dev"

func normalizeStage(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		return DefaultStage
	}
	return stage
}

// AddressPath is the parameter holding the Jamf Pro server address.
func AddressPath(stage string) string {
	return fmt.Sprintf("/%s/JamfPro/Address", normalizeStage(stage))
}

// AccountPath is the parameter holding one field (Username or Password) of an
// API account.
func AccountPath(stage, account, field string) string {
	return fmt.Sprintf("/%s/JamfPro/Accts/%s/%s", normalizeStage(stage), account, field)
}

// ParameterPath places an arbitrary parameter under the stage prefix.
func ParameterPath(stage, param string) string {
	return fmt.Sprintf("/%s/%s", normalizeStage(stage), strings.TrimPrefix(param, "/"))
}

// Cached memoizes successful lookups of the wrapped store for the life of
// the process. Failures are not cached.
type Cached struct {
	store  Store
	mu     sync.Mutex
	values map[string]string
}

// NewCached wraps store with a process-lifetime cache.
func NewCached(store Store) *Cached {
	return &Cached{store: store, values: make(map[string]string)}
}

// Get returns the cached value or resolves it from the wrapped store.
func (c *Cached) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	value, ok := c.values[name]
	c.mu.Unlock()
	if ok {
		return value, nil
	}

	value, err := c.store.Get(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.values[name] = value
	c.mu.Unlock()
	return value, nil
}
