package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/tailored-agentic-units/toolbridge/adapter"
	"github.com/tailored-agentic-units/toolbridge/fabric"
	"github.com/tailored-agentic-units/toolbridge/observability"
)

// config holds the serving agent's parameters: the fabric address it
// answers on and the fabric section for its HTTP endpoint.
type config struct {
	Address string        `json:"address,omitempty"`
	Fabric  fabric.Config `json:"fabric"`
}

func defaultConfig() config {
	return config{
		Address: "tool-agent",
		Fabric:  fabric.DefaultConfig(),
	}
}

func loadConfig(filename string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if loaded.Address != "" {
		cfg.Address = loaded.Address
	}
	cfg.Fabric.Merge(&loaded.Fabric)
	return cfg, nil
}

func main() {
	var (
		configFile = flag.String("config", "", "Path to agent config JSON file")
		address    = flag.String("address", "", "Fabric address to answer on (overrides config)")
		listenAddr = flag.String("listen", "", "HTTP listen address for inbound fabric messages (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configFile != "" {
		loaded, err := loadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *address != "" {
		cfg.Address = *address
	}
	if *listenAddr != "" {
		cfg.Fabric.ListenAddr = *listenAddr
	}
	if cfg.Fabric.ListenAddr == "" {
		cfg.Fabric.ListenAddr = ":8003"
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	cfg.Fabric.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry := buildRegistry()
	node := fabric.NewNode(ctx, cfg.Fabric)

	srv := adapter.New(registry, node, cfg.Address,
		adapter.WithLogger(logger),
		adapter.WithObserver(observability.NewSlogObserver(logger)),
	)
	if err := srv.Bind(node); err != nil {
		log.Fatalf("Failed to bind adapter: %v", err)
	}

	logger.Info("tool agent started",
		slog.String("address", cfg.Address),
		slog.String("listen", cfg.Fabric.ListenAddr),
		slog.Int("tools", len(registry.List())),
	)

	if err := node.ListenAndServe(ctx); err != nil {
		log.Fatalf("Fabric node failed: %v", err)
	}

	if err := node.Shutdown(5 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
}
