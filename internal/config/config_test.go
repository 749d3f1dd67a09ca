package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("BRIDGE_DEBUG_PORT", "9333")
	t.Setenv("BRIDGE_AUTO_LAUNCH", "false")
	t.Setenv("BRIDGE_CONSOLE_BUFFER_SIZE", "50")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Debug.Port != 9333 {
		t.Errorf("port = %d, want 9333", cfg.Debug.Port)
	}
	if cfg.Debug.AutoLaunch {
		t.Errorf("auto launch should be false")
	}
	if cfg.Buffers.ConsoleSize != 50 {
		t.Errorf("console size = %d, want 50", cfg.Buffers.ConsoleSize)
	}
	// Unset values keep their defaults.
	if cfg.Debug.Host != "localhost" {
		t.Errorf("host = %q, want localhost", cfg.Debug.Host)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Debug.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero port")
	}
}

func TestValidateRejectsAnnotationPortOverflow(t *testing.T) {
	cfg := Default()
	cfg.Annotation.BasePort = 65535
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: no room for fallback ports")
	}
}
