package config

import "time"

// Default values for the pool's tunables, mirroring spec.md §6 and the
// teacher's pkg/config/constants.go.
const (
	DefaultGCThresholdSeconds = 600
	DefaultGCFrequency        = time.Second
	DefaultMaxIdle            = 10
	DefaultMaxActive          = 4
	DefaultLogDir             = "/logs"

	DefaultSelfDockerEndpoint       = "localhost"
	DefaultDockerImageTag           = "latest"
	DefaultInvokerContainerNetwork  = "bridge"
	DefaultActionContainerPrefix    = "wsk"
	DefaultEdgeHost                 = "172.17.0.1:443"
	DefaultWhiskVersion             = "dev"
	DefaultBusyRetryInterval        = 100 * time.Millisecond
	DefaultTeardownFlushDelay       = 150 * time.Millisecond
	WhiskPresentImagePrefix         = "whisk/"
)
