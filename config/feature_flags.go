package config

import (
	"fmt"
	"sort"
	"sync"
)

// FeatureFlags holds runtime toggles for optional surfaces of the service.
// They start from the features section of Config and may be flipped by
// operators through the admin API.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

const (
	// FeatureRecognitionBoard exposes the recognition board export.
	FeatureRecognitionBoard = "recognition.board"

	// FeatureAutoSeedValues installs the default values when a cycle is
	// created.
	FeatureAutoSeedValues = "cycle.auto_seed_values"

	// FeatureCrossProcessEvents relays domain events through Redis.
	FeatureCrossProcessEvents = "events.redis_relay"
)

// FeaturesConfig is the features section of Config. Each field seeds the
// flag of the same name.
type FeaturesConfig struct {
	RecognitionBoard bool `koanf:"recognition_board"`
	AutoSeedValues   bool `koanf:"auto_seed_values"`
	RedisRelay       bool `koanf:"redis_relay"`
}

// NewFeatureFlags builds the flag set from the loaded configuration.
func NewFeatureFlags(cfg FeaturesConfig) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	for _, f := range []Feature{
		{Name: FeatureRecognitionBoard, Description: "Serve the recognition board export", Enabled: cfg.RecognitionBoard},
		{Name: FeatureAutoSeedValues, Description: "Seed default values on cycle creation", Enabled: cfg.AutoSeedValues},
		{Name: FeatureCrossProcessEvents, Description: "Relay domain events through Redis pub/sub", Enabled: cfg.RedisRelay},
	} {
		f := f
		ff.features[f.Name] = &f
	}
	return ff
}

// IsEnabled reports whether the flag is on. Unknown flags are off; a nil
// set treats every flag as on.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set flips a flag.
func (ff *FeatureFlags) Set(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}
	f.Enabled = enabled
	return nil
}

// All returns a snapshot of every flag ordered by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FeatureFlagError reports an operation on an unknown flag.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flag %s: %s", e.Feature, e.Message)
}
