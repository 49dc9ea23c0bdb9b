package testutil

import (
	"github.com/p-arndt/ipyboxd/internal/config"
)

// TestConfig returns a Config with sensible test defaults.
func TestConfig() *config.Config {
	return &config.Config{
		Host:                   "127.0.0.1",
		Port:                   0,
		APIKey:                 "test-api-key",
		DefaultTag:             "ghcr.io/gradion-ai/ipybox",
		AllowedImages:          []string{"ghcr.io/gradion-ai/ipybox", "ghcr.io/gradion-ai/ipybox:python"},
		CleanupIntervalSeconds: 1,
		MaxIdleTimeSeconds:     300,
		LogLevel:               "debug",
		Defaults: config.Defaults{
			CPULimit:         1.0,
			MemLimitMB:       512,
			PidsLimit:        256,
			MaxExecTimeoutMs: 120000,
			NetworkMode:      "none",
			ReadonlyRootfs:   true,
		},
	}
}
