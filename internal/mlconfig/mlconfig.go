// Package mlconfig loads the YAML configuration files under CONFIG_DIR
// that drive the model registry, evaluation engine, quota ledger,
// cache, and seed data — mirroring the original's yaml.safe_load
// config loaders.
package mlconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
)

// MLConfig mirrors ml-config.yaml.
type MLConfig struct {
	EvalWorkers int `yaml:"evalWorkers"`
}

// QuotaConfig mirrors quota.yaml.
type QuotaConfig struct {
	DailyLimit       int                 `yaml:"dailyLimit"`
	ConcurrencyLimit int                 `yaml:"concurrencyLimit"`
	ResetPolicy      domain.ResetPolicy  `yaml:"resetPolicy"`
}

// CacheConfig mirrors cache.yaml.
type CacheConfig struct {
	TTLHours            int `yaml:"ttlHours"`
	RevisitThrottleDays int `yaml:"revisitThrottleDays"`
}

// QueriesConfig mirrors queries.yaml.
type QueriesConfig struct {
	Queries []string `yaml:"queries"`
}

// AllowlistConfig mirrors allowlists.yaml.
type AllowlistConfig struct {
	Domains []string `yaml:"domains"`
}

// LoadModels reads models.yaml into an mlmodel.Config.
func LoadModels(configDir string) (mlmodel.Config, error) {
	var cfg mlmodel.Config
	err := loadYAML(filepath.Join(configDir, "models.yaml"), &cfg)
	return cfg, err
}

// LoadMLConfig reads ml-config.yaml.
func LoadMLConfig(configDir string) (MLConfig, error) {
	var cfg MLConfig
	err := loadYAML(filepath.Join(configDir, "ml-config.yaml"), &cfg)
	return cfg, err
}

// LoadQuota reads quota.yaml.
func LoadQuota(configDir string) (QuotaConfig, error) {
	var cfg QuotaConfig
	err := loadYAML(filepath.Join(configDir, "quota.yaml"), &cfg)
	return cfg, err
}

// LoadCache reads cache.yaml.
func LoadCache(configDir string) (CacheConfig, error) {
	var cfg CacheConfig
	err := loadYAML(filepath.Join(configDir, "cache.yaml"), &cfg)
	return cfg, err
}

// LoadQueries reads queries.yaml, normalizing each entry the way the
// run inputs builder expects (trimmed, non-empty).
func LoadQueries(configDir string) ([]string, error) {
	var cfg QueriesConfig
	if err := loadYAML(filepath.Join(configDir, "queries.yaml"), &cfg); err != nil {
		return nil, err
	}
	queries := make([]string, 0, len(cfg.Queries))
	for _, q := range cfg.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// LoadAllowlist reads allowlists.yaml and normalizes every domain:
// lowercase, strip a trailing dot, reject anything carrying a scheme,
// path, port, or wildcard, reject domains over 253 chars and labels
// that are not valid RFC 1035 labels (1-63 chars).
func LoadAllowlist(configDir string) ([]string, error) {
	var cfg AllowlistConfig
	if err := loadYAML(filepath.Join(configDir, "allowlists.yaml"), &cfg); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(cfg.Domains))
	for _, raw := range cfg.Domains {
		normalized, err := NormalizeAllowlistDomain(raw)
		if err != nil {
			return nil, fmt.Errorf("mlconfig: allowlists.yaml: %w", err)
		}
		domains = append(domains, normalized)
	}
	return domains, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mlconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("mlconfig: parse %s: %w", path, err)
	}
	return nil
}
