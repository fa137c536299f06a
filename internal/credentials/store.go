package credentials

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/errors"
)

// Store returns the stored properties of a credential type
type Store interface {
	Get(ctx context.Context, name string) (map[string]any, error)
}

// MemoryStore keeps credential properties in memory
type MemoryStore struct {
	data map[string]map[string]any
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]any)}
}

// Put stores a copy of data under name
func (s *MemoryStore) Put(name string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = maps.Clone(data)
}

func (s *MemoryStore) Get(ctx context.Context, name string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[name]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no credentials of type %q configured", name))
	}
	return maps.Clone(data), nil
}

// StoreFromConfig seeds a store with the credentials found in the environment
func StoreFromConfig(cfg *config.Config) *MemoryStore {
	store := NewMemoryStore()
	if cfg.GPortal.Token != "" {
		store.Put(TypeGPortalAPI, map[string]any{
			"token":  cfg.GPortal.Token,
			"domain": cfg.GPortal.BaseURL,
		})
	}
	if cfg.Socket != nil && cfg.Socket.JWTToken != "" {
		store.Put(TypeSocketIOAPI, map[string]any{
			"jwtToken":       cfg.Socket.JWTToken,
			"serverUrl":      cfg.Socket.ServerURL,
			"namespace":      cfg.Socket.Namespace,
			"authQueryParam": cfg.Socket.AuthQueryParam,
		})
	}
	return store
}
