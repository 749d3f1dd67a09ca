package main

import (
	"context"
	"os"
	"testing"
	"time"

	"agentbridge-mcp-server/internal/config"
	"agentbridge-mcp-server/internal/lifecycle"
)

// TestIntegrationBridgeLifecycle exercises the full component wiring (minus
// an actual browser connection, which requires a real Chrome instance) the
// way main() assembles it: config, bridge construction, annotation service
// startup, and orderly shutdown.
func TestIntegrationBridgeLifecycle(t *testing.T) {
	if os.Getenv("SKIP_LIVE_TESTS") != "" {
		t.Skip("Skipping integration tests (SKIP_LIVE_TESTS set)")
	}

	t.Run("load default configuration", func(t *testing.T) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("default config failed validation: %v", err)
		}
	})

	t.Run("construct bridge", func(t *testing.T) {
		cfg := config.Default()
		cfg.Annotation.BasePort = 19223

		bridge, err := lifecycle.New(cfg)
		if err != nil {
			t.Fatalf("lifecycle.New failed: %v", err)
		}
		if bridge.Sessions.IsConnected() {
			t.Error("session manager should not be connected before Run()")
		}
	})

	t.Run("annotation service starts and stops", func(t *testing.T) {
		cfg := config.Default()
		cfg.Annotation.BasePort = 19233

		bridge, err := lifecycle.New(cfg)
		if err != nil {
			t.Fatalf("lifecycle.New failed: %v", err)
		}

		port, err := bridge.Annotations.Start(cfg.Annotation.BasePort)
		if err != nil {
			t.Fatalf("annotation service failed to start: %v", err)
		}
		if port < cfg.Annotation.BasePort || port > cfg.Annotation.BasePort+3 {
			t.Errorf("port %d outside expected fallback range", port)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		bridge.Shutdown(ctx)
	})

	t.Run("tool surface is constructed", func(t *testing.T) {
		cfg := config.Default()
		cfg.Annotation.BasePort = 19243

		bridge, err := lifecycle.New(cfg)
		if err != nil {
			t.Fatalf("lifecycle.New failed: %v", err)
		}
		if bridge.Tools == nil {
			t.Fatal("expected non-nil tool surface")
		}
	})
}
