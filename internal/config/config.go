// Package config carries tunables that sit outside the per-call selector
// surface: frame-pool depth, acquisition timeouts, and the assumed HDR
// source peak used by the tone mapper. Library callers normally just use
// Default(); a host process can point HDRSHOT_CONFIG at a file to override
// individual fields. The pipeline passes on only the assumed source peak;
// pool depth and timeout are loaded but not applied.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds tunables for a Pipeline. Zero-value fields are replaced with
// the Default() values by Load.
type Config struct {
	// FramePoolDepth is the requested number of GPU surfaces for the
	// compositor-managed frame pool; Load raises values below 2 to 2.
	// capture.Session does not read this field: its pool depth is fixed
	// at 2.
	FramePoolDepth int `mapstructure:"frame_pool_depth"`

	// FreshTimeout is the requested bound on how long capture() waits for
	// the next compositor frame-arrived signal. capture.Session does not
	// read this field: its wait is fixed at 1000 ms.
	FreshTimeout time.Duration `mapstructure:"fresh_timeout"`

	// AssumedSourcePeakNits is the heuristic HDR source peak (Lw), used in
	// the absence of true scene-peak metadata. The tone mapper applies the
	// BT.2390 EETF only when this value exceeds the SDR white level; the
	// knee itself is computed from the SDR white level alone. Defaults to
	// 1000 nits and is overridable.
	AssumedSourcePeakNits float32 `mapstructure:"assumed_source_peak_nits"`

	// LogLevel and LogFormat are the level and format a host process
	// passes to internal/logging.Init (cmd/hdrshot does so after Load).
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns the built-in tunables used when no config file or env
// override is present.
func Default() Config {
	return Config{
		FramePoolDepth:        2,
		FreshTimeout:          1000 * time.Millisecond,
		AssumedSourcePeakNits: 1000,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads HDRSHOT_* environment variables and, if HDRSHOT_CONFIG names a
// file, merges its contents over the defaults. Leaving HDRSHOT_CONFIG unset
// is not an error; if it names a file that cannot be read, Load returns
// Default() together with the read error.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HDRSHOT")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("frame_pool_depth", def.FramePoolDepth)
	v.SetDefault("fresh_timeout", def.FreshTimeout)
	v.SetDefault("assumed_source_peak_nits", def.AssumedSourcePeakNits)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return def, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return def, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.FramePoolDepth < 2 {
		cfg.FramePoolDepth = 2
	}
	if cfg.FreshTimeout <= 0 {
		cfg.FreshTimeout = def.FreshTimeout
	}
	if cfg.AssumedSourcePeakNits <= 0 {
		cfg.AssumedSourcePeakNits = def.AssumedSourcePeakNits
	}

	return cfg, nil
}
