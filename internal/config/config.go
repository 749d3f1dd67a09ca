// Package config resolves the bridge's runtime settings. Environment
// variables are the authoritative layer (spec §6); an optional YAML file
// sits underneath them purely for local convenience, mirroring the
// teacher's layered config philosophy without adding a required input.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every tunable named in spec §6's Environment table, plus
// the annotation/process/audit knobs this implementation adds.
type Config struct {
	Debug      DebugConfig      `yaml:"debug"`
	Buffers    BufferConfig     `yaml:"buffers"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Process    ProcessConfig    `yaml:"process"`
}

// DebugConfig configures discovery of, and connection to, the browser's
// remote-debugging endpoint.
type DebugConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AutoLaunch  bool   `yaml:"auto_launch"`
	BrowserPath string `yaml:"browser_path"`
	LaunchURL   string `yaml:"launch_url"`
	DirectWSURL string `yaml:"direct_ws_url"`
}

// BufferConfig sizes the bounded ring buffers (component A).
type BufferConfig struct {
	ConsoleSize   int `yaml:"console_size"`
	NetworkSize   int `yaml:"network_size"`
	ServerLogSize int `yaml:"server_log_size"`
}

// AnnotationConfig sizes the annotation HTTP service (component F).
type AnnotationConfig struct {
	BasePort int    `yaml:"base_port"`
	AuditDir string `yaml:"audit_dir"`
}

// ProcessConfig configures the child-process manager (component G).
type ProcessConfig struct {
	GraceTimeout time.Duration `yaml:"-"`
}

// Default returns the documented defaults from spec §6.
func Default() Config {
	return Config{
		Debug: DebugConfig{
			Host:       "localhost",
			Port:       9222,
			AutoLaunch: true,
		},
		Buffers: BufferConfig{
			ConsoleSize:   500,
			NetworkSize:   200,
			ServerLogSize: 1000,
		},
		Annotation: AnnotationConfig{
			BasePort: 9223,
			AuditDir: "",
		},
		Process: ProcessConfig{
			GraceTimeout: 5 * time.Second,
		},
	}
}

// Load builds the effective config: defaults, then an optional YAML file
// (yamlPath may be empty), then environment variables, which always win.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", yamlPath, err)
		}
	}

	applyEnv(&cfg)

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BRIDGE_DEBUG_HOST"); v != "" {
		cfg.Debug.Host = v
	}
	if v, ok := envInt("BRIDGE_DEBUG_PORT"); ok {
		cfg.Debug.Port = v
	}
	if v, ok := envBool("BRIDGE_AUTO_LAUNCH"); ok {
		cfg.Debug.AutoLaunch = v
	}
	if v := os.Getenv("BRIDGE_BROWSER_PATH"); v != "" {
		cfg.Debug.BrowserPath = v
	}
	if v := os.Getenv("BRIDGE_LAUNCH_URL"); v != "" {
		cfg.Debug.LaunchURL = v
	}
	if v := os.Getenv("BRIDGE_DIRECT_WS_URL"); v != "" {
		cfg.Debug.DirectWSURL = v
	}
	if v, ok := envInt("BRIDGE_CONSOLE_BUFFER_SIZE"); ok {
		cfg.Buffers.ConsoleSize = v
	}
	if v, ok := envInt("BRIDGE_NETWORK_BUFFER_SIZE"); ok {
		cfg.Buffers.NetworkSize = v
	}
	if v, ok := envInt("BRIDGE_SERVER_LOG_BUFFER_SIZE"); ok {
		cfg.Buffers.ServerLogSize = v
	}
	if v, ok := envInt("BRIDGE_ANNOTATION_PORT"); ok {
		cfg.Annotation.BasePort = v
	}
	if v := os.Getenv("BRIDGE_ANNOTATION_AUDIT_DIR"); v != "" {
		cfg.Annotation.AuditDir = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate fails closed on configs that cannot produce a working server.
func (c Config) Validate() error {
	if c.Debug.Port <= 0 || c.Debug.Port > 65535 {
		return errors.New("debug port must be in (0, 65535]")
	}
	if c.Buffers.ConsoleSize <= 0 || c.Buffers.NetworkSize <= 0 || c.Buffers.ServerLogSize <= 0 {
		return errors.New("buffer sizes must be positive")
	}
	if c.Annotation.BasePort <= 0 || c.Annotation.BasePort > 65532 {
		return errors.New("annotation base port must leave room for 3 fallback ports")
	}
	return nil
}
