// Package config loads the pool's tunables and required configuration keys
// with spf13/viper, following pkg/config/defaults.go's
// defaults-then-overrides shape.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// InitFailurePolicy decides what happens to a container whose init call
// failed. See SPEC_FULL.md Part E for the rationale.
type InitFailurePolicy string

const (
	// KeepWarm preserves the historically observed OpenWhisk behavior:
	// the container stays registered and may serve future requests.
	KeepWarm InitFailurePolicy = "keep-warm"
	// Quarantine deletes the container instead of recycling it.
	Quarantine InitFailurePolicy = "quarantine"
)

// Config holds the pool's tunables and the required configuration keys from
// spec.md §6.
type Config struct {
	SelfDockerEndpoint      string
	DockerImageTag          string
	InvokerContainerNetwork string
	InvokerInstance         int

	GCThreshold time.Duration
	GCFrequency time.Duration
	MaxIdle     int
	MaxActive   int
	LogDir      string

	ActionPrefix string
	EdgeHost     string
	WhiskVersion string

	InitFailurePolicy InitFailurePolicy

	// RepoRoot is bind-mounted read-only into every created container.
	RepoRoot string
}

// SetViperDefaults registers every default value this package understands,
// mirroring pkg/config/defaults.go's SetViperDefaults.
func SetViperDefaults(v *viper.Viper) {
	v.SetDefault("pool.gc_threshold_seconds", DefaultGCThresholdSeconds)
	v.SetDefault("pool.gc_frequency_seconds", DefaultGCFrequency.Seconds())
	v.SetDefault("pool.max_idle", DefaultMaxIdle)
	v.SetDefault("pool.max_active", DefaultMaxActive)
	v.SetDefault("pool.log_dir", DefaultLogDir)
	v.SetDefault("pool.init_failure_policy", string(KeepWarm))

	v.SetDefault("docker.self_endpoint", DefaultSelfDockerEndpoint)
	v.SetDefault("docker.image_tag", DefaultDockerImageTag)
	v.SetDefault("docker.network", DefaultInvokerContainerNetwork)

	v.SetDefault("invoker.instance", 0)
	v.SetDefault("invoker.action_prefix", DefaultActionContainerPrefix)
	v.SetDefault("invoker.edge_host", DefaultEdgeHost)
	v.SetDefault("invoker.whisk_version", DefaultWhiskVersion)
}

// Load builds a Config from viper, applying defaults first and then any
// values set from flags, environment, or a config file, following
// pkg/config/defaults.go's LoadSearchConfig shape (defaults, then
// viper.IsSet overrides only for values explicitly provided).
func Load(v *viper.Viper) (*Config, error) {
	SetViperDefaults(v)

	cfg := &Config{
		SelfDockerEndpoint:      v.GetString("docker.self_endpoint"),
		DockerImageTag:          v.GetString("docker.image_tag"),
		InvokerContainerNetwork: v.GetString("docker.network"),
		InvokerInstance:         v.GetInt("invoker.instance"),

		GCThreshold: time.Duration(v.GetInt64("pool.gc_threshold_seconds")) * time.Second,
		GCFrequency: time.Duration(v.GetFloat64("pool.gc_frequency_seconds") * float64(time.Second)),
		MaxIdle:     v.GetInt("pool.max_idle"),
		MaxActive:   v.GetInt("pool.max_active"),
		LogDir:      v.GetString("pool.log_dir"),

		ActionPrefix: v.GetString("invoker.action_prefix"),
		EdgeHost:     v.GetString("invoker.edge_host"),
		WhiskVersion: v.GetString("invoker.whisk_version"),

		InitFailurePolicy: InitFailurePolicy(v.GetString("pool.init_failure_policy")),

		RepoRoot: v.GetString("repository.root"),
	}

	clampNonNegative(&cfg.MaxIdle)
	clampNonNegative(&cfg.MaxActive)
	if cfg.GCThreshold < 0 {
		cfg.GCThreshold = 0
	}

	if cfg.InitFailurePolicy != KeepWarm && cfg.InitFailurePolicy != Quarantine {
		return nil, fmt.Errorf("invalid pool.init_failure_policy: %q", cfg.InitFailurePolicy)
	}

	return cfg, nil
}

func clampNonNegative(n *int) {
	if *n < 0 {
		*n = 0
	}
}
