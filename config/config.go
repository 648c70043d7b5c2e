// Package config loads the engine's runtime configuration from TOML,
// so quota profiles, cache sizing, and scheduler sizing can be tuned by
// an embedding toolchain driver without recompiling.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janus-lang/janus-sub015/quota"
)

// QuotaProfile mirrors quota.Limits in TOML-friendly field types (plain
// integers/strings rather than time.Duration, which the TOML decoder
// does not know how to parse directly).
type QuotaProfile struct {
	WallTimeMillis int64  `toml:"wall_time_ms"`
	MemoryBytes    int64  `toml:"memory_bytes"`
	NodeVisits     int64  `toml:"node_visits"`
	MaxDepth       int    `toml:"max_depth"`
	Gas            int64  `toml:"gas"`
}

// ToLimits converts a QuotaProfile into quota.Limits.
func (p QuotaProfile) ToLimits() quota.Limits {
	return quota.Limits{
		WallTime:    time.Duration(p.WallTimeMillis) * time.Millisecond,
		MemoryBytes: p.MemoryBytes,
		NodeVisits:  p.NodeVisits,
		MaxDepth:    p.MaxDepth,
		Gas:         p.Gas,
	}
}

// SchedulerConfig configures the M:N task scheduler.
type SchedulerConfig struct {
	// Workers is the number of OS-thread-bound worker goroutines to run.
	// 0 means autodetect via go.uber.org/automaxprocs.
	Workers int `toml:"workers"`

	// DequeCapacity is the bounded circular buffer capacity of each
	// worker's local ready queue.
	DequeCapacity int `toml:"deque_capacity"`
}

// RuntimeConfig is the top-level, TOML-decodable configuration for one
// engine instance: quota profiles, scheduler sizing, and telemetry
// output path.
type RuntimeConfig struct {
	QuotaProfiles map[string]QuotaProfile `toml:"quota_profiles"`
	Scheduler     SchedulerConfig         `toml:"scheduler"`

	// TelemetrySnapshotPath, if non-empty, names a file path for
	// telemetry.DumpSnapshot's JSON snapshot. This package only stores
	// the value; it does not call DumpSnapshot itself.
	TelemetrySnapshotPath string `toml:"telemetry_snapshot_path"`

	// InvalidationMinSeverity names the minimum change-set severity that
	// triggers invalidation: "minor" (default), "major", or "breaking".
	// Severity "cosmetic" may be named here but has no effect, since
	// cosmetic changes never invalidate regardless of this setting.
	InvalidationMinSeverity string `toml:"invalidation_min_severity"`
}

// Default returns a RuntimeConfig seeded with quota.DefaultProfiles,
// GOMAXPROCS-autodetected worker count (Workers: 0), and a 256-slot
// deque, matching the engine's built-in defaults.
func Default() RuntimeConfig {
	profiles := quota.DefaultProfiles()
	cfg := RuntimeConfig{
		QuotaProfiles: make(map[string]QuotaProfile, len(profiles)),
		Scheduler: SchedulerConfig{
			Workers:       0,
			DequeCapacity: 256,
		},
		InvalidationMinSeverity: "minor",
	}
	for name, limits := range profiles {
		cfg.QuotaProfiles[name] = QuotaProfile{
			WallTimeMillis: limits.WallTime.Milliseconds(),
			MemoryBytes:    limits.MemoryBytes,
			NodeVisits:     limits.NodeVisits,
			MaxDepth:       limits.MaxDepth,
			Gas:            limits.Gas,
		}
	}
	return cfg
}

// Load decodes a RuntimeConfig from the TOML file at path, starting from
// Default() so a config file only needs to override the fields it cares
// about.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
