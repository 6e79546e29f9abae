package secrets

import (
	"context"
	"strings"

	"example.com/backstage/services/jamfops/internal/failure"
)

// StaticStore serves secrets from configuration. Names are matched without
// regard to case since viper lower-cases map keys.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore creates a store over a fixed set of values.
func NewStaticStore(values map[string]string) *StaticStore {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		normalized[strings.ToLower(k)] = v
	}
	return &StaticStore{values: normalized}
}

// Get returns the configured value for name.
func (s *StaticStore) Get(_ context.Context, name string) (string, error) {
	value, ok := s.values[strings.ToLower(name)]
	if !ok || value == "" {
		return "", failure.Configuration("secret %s is not configured", name)
	}
	return value, nil
}
