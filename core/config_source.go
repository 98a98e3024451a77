package core

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// StaticConfigSource serves adapter configurations from an in-memory map.
// Adapters without an entry receive an empty configuration rather than an
// error, so adapters that need no settings register cleanly.
type StaticConfigSource struct {
	mu      sync.RWMutex
	configs map[string]*AdapterConfig
}

// NewStaticConfigSource creates a source over the given map. A nil map is
// treated as empty.
func NewStaticConfigSource(configs map[string]*AdapterConfig) *StaticConfigSource {
	if configs == nil {
		configs = make(map[string]*AdapterConfig)
	}
	return &StaticConfigSource{configs: configs}
}

// AdapterConfig implements ConfigSource.
func (s *StaticConfigSource) AdapterConfig(ctx context.Context, adapterID string) (*AdapterConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cfg, ok := s.configs[adapterID]; ok {
		return cfg, nil
	}
	return &AdapterConfig{}, nil
}

// Set stores or replaces the configuration for an adapter id.
func (s *StaticConfigSource) Set(adapterID string, cfg *AdapterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[adapterID] = cfg
}

// YAMLConfigSource loads per-adapter configurations from a YAML file whose
// top level maps adapter ids to AdapterConfig sections:
//
//	crm:
//	  tenant: acme
//	  endpoints:
//	    api: https://crm.example.com
//	  timeout: 10s
type YAMLConfigSource struct {
	*StaticConfigSource
}

// NewYAMLConfigSource reads and parses the file once at construction.
func NewYAMLConfigSource(path string) (*YAMLConfigSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("reading adapter config file %s: %w", path, err)
	}

	configs := make(map[string]*AdapterConfig)
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parsing adapter config file %s: %w", path, err)
	}

	return &YAMLConfigSource{StaticConfigSource: NewStaticConfigSource(configs)}, nil
}
