package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentbridge-mcp-server/internal/config"
	"agentbridge-mcp-server/internal/lifecycle"
)

const bridgeShutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file layered under BRIDGE_* environment variables")
	logFile := flag.String("log-file", "", "Redirect logging to a file instead of stderr (stdio mode reserves stdout for MCP protocol framing)")
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		log.SetOutput(f)
		defer f.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bridge, err := lifecycle.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize bridge: %v", err)
	}
	defer bridge.ShutdownSync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting agentbridge-mcp-server stdio tool surface")
	runErr := bridge.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), bridgeShutdownTimeout)
	defer cancel()
	bridge.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", runErr)
	}
}
