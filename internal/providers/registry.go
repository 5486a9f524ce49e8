package providers

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the configured LLM clients by name.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *zap.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     logger,
	}
}

// RegisterLLM registers an LLM client by name, replacing any previous one.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	r.logger.Debug("registered LLM client", zap.String("name", name), zap.String("client", client.Name()))
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s (available: %v)", name, r.listLocked())
	}
	return client, nil
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
