package config

import "sync/atomic"

// Holder provides hot-reloadable access to the active Config.
// Get is safe for concurrent use; Reload swaps in a freshly loaded
// config atomically, keeping the old one when loading fails.
type Holder struct {
	current  atomic.Pointer[Config]
	yamlPath string
}

// NewHolder wraps an already-loaded config for later reloads from yamlPath.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	h := &Holder{yamlPath: yamlPath}
	h.current.Store(cfg)
	return h
}

// Get returns the active config.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Reload re-runs the full load pipeline from the original YAML path.
// On error the previous config stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.yamlPath)
	if err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}
