// Package config loads engine-wide defaults through viper, with
// environment variables taking precedence over built-in defaults. Load
// builds a fresh viper instance on every call; there is no process-wide
// singleton, config file, or flag binding. This is process
// configuration only:
// the per-collection ChronicleConfig row (default fullChunkInterval,
// declared indexed/unique fields) is persisted data, not process
// config, and is never read through this package.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Engine holds the engine-wide knobs that apply across every
// collection unless a collection's own ChronicleConfig overrides them.
type Engine struct {
	// DefaultFullChunkInterval seeds ChronicleConfig.FullChunkInterval
	// for collections initialized without an explicit override.
	DefaultFullChunkInterval int
	// LogLevel is loaded from CHRONICLE_LOG_LEVEL (default "info").
	// No package in this module reads it; the audit trail records
	// every event regardless of level.
	LogLevel string
	// AuditLogPath is where internal/chronicle/audit writes its
	// rotated JSONL trail. Empty disables the audit trail.
	AuditLogPath string
	// SQLiteBusyTimeout bounds how long a write waits on a locked
	// database before failing.
	SQLiteBusyTimeout time.Duration
}

// Load builds an Engine config from defaults, optionally overridden by
// CHRONICLE_-prefixed environment variables (e.g.
// CHRONICLE_DEFAULT_FULL_CHUNK_INTERVAL, CHRONICLE_LOG_LEVEL,
// CHRONICLE_AUDIT_LOG_PATH), mirroring the teacher's env-binding
// convention but scoped to this engine's own prefix.
func Load() *Engine {
	v := viper.New()
	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("default_full_chunk_interval", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("audit_log_path", "")
	v.SetDefault("sqlite_busy_timeout", "5s")

	busyTimeout, err := time.ParseDuration(v.GetString("sqlite_busy_timeout"))
	if err != nil {
		busyTimeout = 5 * time.Second
	}

	return &Engine{
		DefaultFullChunkInterval: v.GetInt("default_full_chunk_interval"),
		LogLevel:                 v.GetString("log_level"),
		AuditLogPath:             v.GetString("audit_log_path"),
		SQLiteBusyTimeout:        busyTimeout,
	}
}
