package config

import (
	"log/slog"
	"sync"
)

// Holder provides concurrent access to a Config that can be replaced
// at runtime, typically on SIGHUP.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder wraps an already loaded Config and remembers the YAML path
// it came from for later reloads.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	return &Holder{cfg: cfg, path: yamlPath}
}

// Get returns the current Config. Callers must not mutate it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-runs the load pipeline against the remembered path.
// On error the previous Config stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()

	slog.Info("configuration reloaded", "path", h.path)
	return nil
}
