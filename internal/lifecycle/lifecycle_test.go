package lifecycle

import (
	"context"
	"testing"
	"time"

	"agentbridge-mcp-server/internal/config"
)

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := config.Default()
	cfg.Annotation.BasePort = 19333
	cfg.Annotation.AuditDir = t.TempDir()

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Sessions == nil || b.Annotations == nil || b.Processes == nil || b.Coordinator == nil || b.Tools == nil || b.Facts == nil {
		t.Fatal("expected every component to be non-nil after construction")
	}
	if b.Sessions.IsConnected() {
		t.Fatal("expected no live session before Run()")
	}
}

func TestStartAndShutdownAnnotationService(t *testing.T) {
	cfg := config.Default()
	cfg.Annotation.BasePort = 19343
	cfg.Annotation.AuditDir = t.TempDir()

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	port, err := b.Annotations.Start(cfg.Annotation.BasePort)
	if err != nil {
		t.Fatalf("annotation Start: %v", err)
	}
	if port == 0 {
		t.Fatal("expected a non-zero bound port")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.Shutdown(ctx)
}

func TestCaptureScreenshotFailsWithoutLiveSession(t *testing.T) {
	cfg := config.Default()
	cfg.Annotation.BasePort = 19353
	cfg.Annotation.AuditDir = t.TempDir()

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := b.captureScreenshot(ctx, nil); err == nil {
		t.Fatal("expected an error capturing a screenshot with no live session")
	}
}
