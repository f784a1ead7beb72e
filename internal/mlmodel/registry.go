// Package mlmodel holds the compile-time registry of built-in scoring
// models. Unlike the original's importlib-based dynamic loading, every
// model variant here is registered at init time via Register, and the
// registry config simply selects among them.
package mlmodel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type constructor func() domain.Model

var (
	registryMu sync.Mutex
	builtins   = map[string]constructor{}
	versions   = map[string]string{}
)

// Register adds a built-in model constructor under identifier. Called
// from each model file's init().
func Register(identifier, version string, ctor constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	builtins[identifier] = ctor
	versions[identifier] = version
}

// LoadError captures a single registry entry's load failure without
// blocking the rest of the registry from loading.
type LoadError struct {
	Identifier string
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("mlmodel: load %s: %v", e.Identifier, e.Err)
}

// ConfigEntry mirrors one models.yaml registry entry.
type ConfigEntry struct {
	Identifier string `yaml:"identifier"`
	IsDefault  bool   `yaml:"default"`
}

// Config mirrors models.yaml.
type Config struct {
	Models       []ConfigEntry `yaml:"models"`
	DefaultModel string        `yaml:"default_model"`
}

// Registry holds the models selected by configuration, constructed
// fresh from the compile-time table.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]domain.ModelEntry
	models       map[string]domain.Model
	defaultModel string
	loadErrors   []*LoadError
}

// LoadFromConfig builds a Registry from cfg, skipping and recording any
// entry whose identifier isn't in the compile-time table.
func LoadFromConfig(cfg Config) *Registry {
	r := &Registry{
		entries: map[string]domain.ModelEntry{},
		models:  map[string]domain.Model{},
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	for _, entry := range cfg.Models {
		ctor, ok := builtins[entry.Identifier]
		if !ok {
			r.loadErrors = append(r.loadErrors, &LoadError{
				Identifier: entry.Identifier,
				Err:        fmt.Errorf("no built-in model registered for identifier"),
			})
			continue
		}
		r.entries[entry.Identifier] = domain.ModelEntry{
			Identifier: entry.Identifier,
			Version:    versions[entry.Identifier],
			IsDefault:  entry.IsDefault || entry.Identifier == cfg.DefaultModel,
		}
		r.models[entry.Identifier] = ctor()
		if entry.IsDefault || entry.Identifier == cfg.DefaultModel {
			r.defaultModel = entry.Identifier
		}
	}

	if r.defaultModel == "" && len(r.entries) > 0 {
		ids := r.sortedIdentifiers()
		r.defaultModel = ids[0]
	}

	return r
}

func (r *Registry) sortedIdentifiers() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) HasModel(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[identifier]
	return ok
}

func (r *Registry) GetModel(identifier string) domain.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[identifier]
}

func (r *Registry) GetAvailableModels() []domain.ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ModelEntry, 0, len(r.entries))
	for _, id := range r.sortedIdentifiers() {
		out = append(out, r.entries[id])
	}
	return out
}

// GetEntry returns the registry-reported metadata (including version)
// for identifier.
func (r *Registry) GetEntry(identifier string) (domain.ModelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[identifier]
	return entry, ok
}

func (r *Registry) GetDefaultModel() (domain.ModelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[r.defaultModel]
	return entry, ok
}

func (r *Registry) LoadErrors() []*LoadError {
	return r.loadErrors
}
