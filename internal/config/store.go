// File: internal/config/store.go
package config

import (
	"os"
	"sync"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// The five mutable model-selection keys. The vision-language override
// snapshots exactly these, overwrites them, and restores them on exit.
const (
	KeyVLMode    = "model.vl_mode"
	KeyAPIKey    = "model.api_key"
	KeyBaseURL   = "model.base_url"
	KeyModelName = "model.name"
	KeyMiniModel = "model.mini_name"
)

// KeyForceDeepThink is the global switch that requests narrowing for every
// locate call (subject to the per-query VL mode gate).
const KeyForceDeepThink = "insight.force_deep_think"

// OverrideKeys lists the keys touched by a scoped model override, in a fixed
// order so snapshots are deterministic.
var OverrideKeys = []string{KeyVLMode, KeyAPIKey, KeyBaseURL, KeyModelName, KeyMiniModel}

// Store is the process-wide mutable key/value configuration store. Model
// selection is derived state: it is cached and only refreshed by Recompute,
// so readers of Profile never observe a half-applied override.
type Store struct {
	mu      sync.RWMutex
	values  map[string]string
	profile schemas.ModelProfile
}

// Snapshot records the prior state of a set of keys. A nil entry value means
// the key was unset and must end unset when restored.
type Snapshot map[string]*string

// NewStore builds a store seeded from the resolved application config and
// computes the initial derived model profile.
func NewStore(cfg *Config) *Store {
	s := &Store{values: make(map[string]string)}
	s.seed(KeyModelName, cfg.Model.Name)
	s.seed(KeyMiniModel, cfg.Model.MiniName)
	s.seed(KeyBaseURL, cfg.Model.BaseURL)
	s.seed(KeyAPIKey, cfg.Model.APIKey)
	s.seed(KeyVLMode, cfg.Model.VLMode)
	if cfg.Insight.ForceDeepThink {
		s.values[KeyForceDeepThink] = "true"
	}
	s.recomputeLocked()
	return s
}

func (s *Store) seed(key, value string) {
	if value != "" {
		s.values[key] = value
	}
}

// Get returns the value for key and whether it is set.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// IsSet reports whether key has any value, including the empty string.
func (s *Store) IsSet(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Set assigns value to key. The derived profile is not refreshed until
// Recompute is called.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Unset removes key entirely, as opposed to setting it to an empty value.
func (s *Store) Unset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// SnapshotKeys captures the exact current state of the given keys.
func (s *Store) SnapshotKeys(keys ...string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			val := v
			snap[k] = &val
		} else {
			snap[k] = nil
		}
	}
	return snap
}

// Restore puts every snapshotted key back to its exact prior state: a key
// that was unset before ends unset, not set to an empty value.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snap {
		if v == nil {
			delete(s.values, k)
		} else {
			s.values[k] = *v
		}
	}
}

// Recompute refreshes the cached derived model profile from the raw keys.
// The override mechanism calls this on both entry and exit.
func (s *Store) Recompute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

func (s *Store) recomputeLocked() {
	s.profile = schemas.ModelProfile{
		Model:     s.values[KeyModelName],
		MiniModel: s.values[KeyMiniModel],
		BaseURL:   s.values[KeyBaseURL],
		APIKey:    s.values[KeyAPIKey],
		VLMode:    s.values[KeyVLMode],
	}
}

// Profile returns the cached derived model profile.
func (s *Store) Profile() schemas.ModelProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ForceDeepThink reports the global force-deep-think switch.
func (s *Store) ForceDeepThink() bool {
	v, ok := s.Get(KeyForceDeepThink)
	return ok && v == "true"
}

// VLCredentials is the alternate vision-language credential set read from the
// environment.
type VLCredentials struct {
	APIKey  string
	BaseURL string
	Model   string
	Mode    string
}

// Complete reports whether every required credential is present.
func (c VLCredentials) Complete() bool {
	return c.APIKey != "" && c.BaseURL != "" && c.Model != ""
}

// VLCredentialsFromEnv reads the alternate credential set. Mode defaults to
// "qwen-vl" when the rest of the set is present but no mode name was given.
func VLCredentialsFromEnv() VLCredentials {
	creds := VLCredentials{
		APIKey:  os.Getenv(EnvVLAPIKey),
		BaseURL: os.Getenv(EnvVLBaseURL),
		Model:   os.Getenv(EnvVLModel),
		Mode:    os.Getenv(EnvVLMode),
	}
	if creds.Mode == "" && creds.Complete() {
		creds.Mode = "qwen-vl"
	}
	return creds
}
