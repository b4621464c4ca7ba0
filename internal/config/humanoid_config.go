// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, the tunable parameters of the
// humanization layer. They control the timing variance injected between actions,
// the pointer path toward a click target, and keystroke pacing.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// HumanoidConfig holds the parameters of the humanization layer.
type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Delay injected between actions: base +/- jitter.
	ActionDelayBase   time.Duration `mapstructure:"action_delay_base" yaml:"action_delay_base"`
	ActionDelayJitter time.Duration `mapstructure:"action_delay_jitter" yaml:"action_delay_jitter"`

	// Per-character typing delay: mean +/- jitter.
	KeyDelayMean   time.Duration `mapstructure:"key_delay_mean" yaml:"key_delay_mean"`
	KeyDelayJitter time.Duration `mapstructure:"key_delay_jitter" yaml:"key_delay_jitter"`

	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`

	// Pointer path toward the click point.
	MoveStepsMin int     `mapstructure:"move_steps_min" yaml:"move_steps_min"`
	MoveStepsMax int     `mapstructure:"move_steps_max" yaml:"move_steps_max"`
	PathJitterPx float64 `mapstructure:"path_jitter_px" yaml:"path_jitter_px"`
	// MaxEventsPerSecond paces pointer-move dispatch.
	MaxEventsPerSecond float64 `mapstructure:"max_events_per_second" yaml:"max_events_per_second"`

	// ClickInsetRatio keeps the sampled click point away from the element edge (0..0.5).
	ClickInsetRatio float64 `mapstructure:"click_inset_ratio" yaml:"click_inset_ratio"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.action_delay_base", "350ms")
	v.SetDefault("browser.humanoid.action_delay_jitter", "100ms")
	v.SetDefault("browser.humanoid.key_delay_mean", "90ms")
	v.SetDefault("browser.humanoid.key_delay_jitter", "40ms")
	v.SetDefault("browser.humanoid.click_hold_min_ms", 50)
	v.SetDefault("browser.humanoid.click_hold_max_ms", 120)
	v.SetDefault("browser.humanoid.move_steps_min", 8)
	v.SetDefault("browser.humanoid.move_steps_max", 18)
	v.SetDefault("browser.humanoid.path_jitter_px", 3.0)
	v.SetDefault("browser.humanoid.max_events_per_second", 120.0)
	v.SetDefault("browser.humanoid.click_inset_ratio", 0.15)
}

// Validate checks the humanoid timings for consistency.
func (h *HumanoidConfig) Validate() error {
	if h.ActionDelayBase < 0 || h.ActionDelayJitter < 0 || h.KeyDelayMean < 0 || h.KeyDelayJitter < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if h.ActionDelayJitter > h.ActionDelayBase {
		return fmt.Errorf("action_delay_jitter (%s) must not exceed action_delay_base (%s)", h.ActionDelayJitter, h.ActionDelayBase)
	}
	if h.ClickHoldMinMs < 0 || h.ClickHoldMaxMs < h.ClickHoldMinMs {
		return fmt.Errorf("click_hold_max_ms must be >= click_hold_min_ms >= 0")
	}
	if h.MoveStepsMin < 1 || h.MoveStepsMax < h.MoveStepsMin {
		return fmt.Errorf("move_steps_max must be >= move_steps_min >= 1")
	}
	if h.ClickInsetRatio < 0 || h.ClickInsetRatio >= 0.5 {
		return fmt.Errorf("click_inset_ratio must be in [0, 0.5)")
	}
	return nil
}
