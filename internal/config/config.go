package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults holds the resource limits applied to every sandbox container
// the runtime adapter starts. MaxExecTimeoutMs is loaded but not read by
// the runtime adapter or the execute handlers.
type Defaults struct {
	CPULimit         float64 `yaml:"cpu_limit"`
	MemLimitMB       int     `yaml:"mem_limit_mb"`
	PidsLimit        int     `yaml:"pids_limit"`
	MaxExecTimeoutMs int     `yaml:"max_exec_timeout_ms"`
	NetworkMode      string  `yaml:"network_mode"`
	ReadonlyRootfs   bool    `yaml:"readonly_rootfs"`
}

// Config is the process-wide configuration, loaded from defaults, then
// optionally overlaid by a YAML file, then overlaid again by IPYBOX_*
// environment variables (env vars win).
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	APIKey string `yaml:"api_key"`

	DefaultTag    string   `yaml:"default_tag"`
	AllowedImages []string `yaml:"allowed_images"`

	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
	MaxIdleTimeSeconds     int `yaml:"max_idle_time_seconds"`

	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`

	Defaults Defaults `yaml:"defaults"`
}

// Listen returns the host:port pair the HTTP server should bind to.
func (c *Config) Listen() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Host:                   "127.0.0.1",
		Port:                   8080,
		DefaultTag:             "ghcr.io/gradion-ai/ipybox",
		CleanupIntervalSeconds: 300,
		MaxIdleTimeSeconds:     3600,
		LogLevel:               "info",
		Defaults: Defaults{
			CPULimit:         1.0,
			MemLimitMB:       512,
			PidsLimit:        256,
			MaxExecTimeoutMs: 120000,
			NetworkMode:      "none",
			ReadonlyRootfs:   true,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IPYBOX_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("IPYBOX_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("IPYBOX_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("IPYBOX_DEFAULT_TAG"); v != "" {
		cfg.DefaultTag = v
	}
	if v := os.Getenv("IPYBOX_ALLOWED_IMAGES"); v != "" {
		cfg.AllowedImages = strings.Split(v, ",")
	}
	if v := os.Getenv("IPYBOX_CLEANUP_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CleanupIntervalSeconds = n
		}
	}
	if v := os.Getenv("IPYBOX_MAX_IDLE_TIME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIdleTimeSeconds = n
		}
	}
	if v := os.Getenv("IPYBOX_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("IPYBOX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IPYBOX_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Defaults.CPULimit = f
		}
	}
	if v := os.Getenv("IPYBOX_MEM_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MemLimitMB = n
		}
	}
	if v := os.Getenv("IPYBOX_PIDS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.PidsLimit = n
		}
	}
	if v := os.Getenv("IPYBOX_MAX_EXEC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MaxExecTimeoutMs = n
		}
	}
	if v := os.Getenv("IPYBOX_NETWORK_MODE"); v != "" {
		cfg.Defaults.NetworkMode = v
	}
	if v := os.Getenv("IPYBOX_READONLY_ROOTFS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Defaults.ReadonlyRootfs = b
		}
	}
}
