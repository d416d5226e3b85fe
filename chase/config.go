// Package chase drives the decision follow-up loop: once a report has been
// delivered, unanswered cases are chased on a configurable cadence and
// withdrawn when the attempts run out.
package chase

import "context"

// Settings keys overriding the chase cadence at runtime.
const (
	KeyFirstAfterHours = "chase.first_after_hours"
	KeyIntervalHours   = "chase.interval_hours"
	KeyMaxAttempts     = "chase.max_attempts"
)

// Config is the chase cadence: hours from delivery to the first follow-up,
// hours between subsequent follow-ups, and the attempt ceiling after which
// the case is withdrawn.
type Config struct {
	FirstChaseAfterHours int
	IntervalHours        int
	MaxAttempts          int
}

// DefaultConfig is the cadence used when no override is stored.
func DefaultConfig() Config {
	return Config{
		FirstChaseAfterHours: 48,
		IntervalHours:        72,
		MaxAttempts:          3,
	}
}

// SettingsSource reads integer overrides from the settings store.
type SettingsSource interface {
	GetInt(ctx context.Context, key string) (int, bool, error)
}

// LoadConfig resolves the cadence from stored overrides, falling back to
// defaults per key. Non-positive overrides are ignored.
func LoadConfig(ctx context.Context, source SettingsSource) (Config, error) {
	cfg := DefaultConfig()
	if source == nil {
		return cfg, nil
	}

	if v, ok, err := source.GetInt(ctx, KeyFirstAfterHours); err != nil {
		return cfg, err
	} else if ok && v > 0 {
		cfg.FirstChaseAfterHours = v
	}
	if v, ok, err := source.GetInt(ctx, KeyIntervalHours); err != nil {
		return cfg, err
	} else if ok && v > 0 {
		cfg.IntervalHours = v
	}
	if v, ok, err := source.GetInt(ctx, KeyMaxAttempts); err != nil {
		return cfg, err
	} else if ok && v > 0 {
		cfg.MaxAttempts = v
	}
	return cfg, nil
}
