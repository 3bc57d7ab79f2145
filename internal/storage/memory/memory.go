// Package memory provides a map-backed key-value store for tests and the
// memory data backend.
package memory

import (
	"context"
	"sync"
)

type KV struct {
	mu   sync.Mutex
	data map[string]string
	// FailSet, when non-nil, is returned by every Set call.
	FailSet error
}

func New() *KV {
	return &KV{data: make(map[string]string)}
}

// Seed creates a store pre-populated with values.
func Seed(values map[string]string) *KV {
	kv := New()
	for k, v := range values {
		kv.data[k] = v
	}
	return kv
}

func (k *KV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok, nil
}

func (k *KV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailSet != nil {
		return k.FailSet
	}
	k.data[key] = value
	return nil
}

// Raw returns the stored value for key, or "" when absent.
func (k *KV) Raw(key string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data[key]
}
