package common

import (
	"fmt"
	"time"
)

const (
	Name    = "prometheus-openweathermap-exporter"
	RepoURL = "https://github.com/i474232898/openweathermap-exporter"

	// DefaultListenAddress is where the exporter listens when nothing else is configured.
	DefaultListenAddress = "localhost:9943"
	MetricsPath          = "/metrics"

	// DefaultUnits is the upstream unit system used when none is configured.
	DefaultUnits   = "metric"
	DefaultTimeout = 15 * time.Second
)

// Version is overridden at build time with -ldflags "-X .../internal/common.Version=...".
var Version = "dev"

// UserAgent returns the User-Agent attached to every outbound request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Name, Version, RepoURL)
}
