// File: internal/modelswitch/switch.go
package modelswitch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
)

// Switcher temporarily routes one locate call onto the alternate
// vision-language model pathway without leaking configuration changes to
// concurrent or subsequent calls.
//
// The override touches process-wide store keys, so calls that actually
// activate it are serialized behind a mutex; the snapshot/restore pair is
// only correct under sequential access. Callers receive the resolved profile
// up front and thread it through their model calls, so nothing downstream
// re-reads the store mid-flight.
type Switcher struct {
	store    *config.Store
	logger   *zap.Logger
	mu       sync.Mutex
	credsFor func() config.VLCredentials
}

// New builds a switcher over the process configuration store.
func New(store *config.Store, logger *zap.Logger) *Switcher {
	return &Switcher{
		store:    store,
		logger:   logger.Named("model_switch"),
		credsFor: config.VLCredentialsFromEnv,
	}
}

var noopRelease = func() {}

// Acquire resolves the model profile for one locate call. When narrowing is
// requested, the primary pathway is not already vision-capable, and a
// complete alternate credential set is present, it snapshots the five model
// keys, applies the alternate set, and returns a release func undoing the
// override exactly. The release func must be called on every exit path.
//
// When the preconditions are not met the call proceeds on the current
// profile and the returned release is a no-op.
func (s *Switcher) Acquire(wantNarrowing bool) (schemas.ModelProfile, func()) {
	current := s.store.Profile()
	if !wantNarrowing {
		return current, noopRelease
	}
	if current.SupportsSectionLocate() {
		// Already on a vision-capable pathway; nothing to override.
		return current, noopRelease
	}

	creds := s.credsFor()
	if !creds.Complete() {
		s.logger.Warn("Search-area narrowing requested but the alternate vision-language credential set is incomplete; narrowing will be skipped")
		return current, noopRelease
	}

	// Serialize qualifying calls: snapshot/restore of shared keys is only
	// correct when overrides do not interleave.
	s.mu.Lock()

	snap := s.store.SnapshotKeys(config.OverrideKeys...)

	s.store.Set(config.KeyVLMode, creds.Mode)
	s.store.Set(config.KeyAPIKey, creds.APIKey)
	s.store.Set(config.KeyBaseURL, creds.BaseURL)
	s.store.Set(config.KeyModelName, creds.Model)
	s.store.Unset(config.KeyMiniModel)
	s.store.Recompute()

	s.logger.Debug("Vision-language override active",
		zap.String("mode", creds.Mode),
		zap.String("model", creds.Model),
	)

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.store.Restore(snap)
			s.store.Recompute()
			s.mu.Unlock()
			s.logger.Debug("Vision-language override released")
		})
	}
	return s.store.Profile(), release
}
