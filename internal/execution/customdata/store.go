// Package customdata holds the key/value data scoped to one workflow execution
package customdata

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"n8n-gportal/internal/config"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/logger"
)

// Provider hands out the store of one execution
type Provider interface {
	For(executionID string) nodes.CustomData
	Close() error
}

// MemoryStore is an in-process execution store
type MemoryStore struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// GetAll returns a snapshot of every key
func (s *MemoryStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data), nil
}

// MemoryProvider keeps one MemoryStore per execution for the process lifetime
type MemoryProvider struct {
	stores map[string]*MemoryStore
	mu     sync.Mutex
}

// NewMemoryProvider creates an empty provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{stores: make(map[string]*MemoryStore)}
}

func (p *MemoryProvider) For(executionID string) nodes.CustomData {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stores[executionID]
	if !ok {
		s = NewMemoryStore()
		p.stores[executionID] = s
	}
	return s
}

// Forget drops the store of a finished execution
func (p *MemoryProvider) Forget(executionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stores, executionID)
}

func (p *MemoryProvider) Close() error { return nil }

// New selects the backend named by cfg.CustomData.Backend
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (Provider, error) {
	switch cfg.CustomData.Backend {
	case "", "memory":
		return NewMemoryProvider(), nil
	case "redis":
		return NewRedisProvider(ctx, cfg.Redis, cfg.CustomData, log)
	default:
		return nil, fmt.Errorf("unknown custom data backend %q", cfg.CustomData.Backend)
	}
}
