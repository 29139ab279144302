package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/tailored-agentic-units/toolbridge/bridge"
	"github.com/tailored-agentic-units/toolbridge/client"
	"github.com/tailored-agentic-units/toolbridge/fabric"
	"github.com/tailored-agentic-units/toolbridge/observability"
)

// Options are the bridge process flags. File config (--config) loads
// first; flags override it.
type Options struct {
	Config         string `short:"c" long:"config" description:"bridge config JSON file"`
	Target         string `short:"t" long:"target" description:"serving agent fabric address"`
	TargetEndpoint string `short:"e" long:"target-endpoint" description:"serving agent HTTP endpoint base URL"`
	Port           int    `short:"p" long:"port" env:"BRIDGE_PORT" description:"JSON-RPC listen port"`
	ClientPort     int    `long:"client-port" env:"CLIENT_AGENT_PORT" description:"fabric listen port for inbound replies"`
	TimeoutMS      int    `long:"timeout" description:"per-call timeout in milliseconds"`
	Stdio          bool   `long:"stdio" description:"serve a line-delimited JSON-RPC session on stdin/stdout instead of HTTP"`
	Verbose        bool   `short:"v" long:"verbose" description:"enable verbose logging to stderr"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}

	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if options.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	cfg.Fabric.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	node := fabric.NewNode(ctx, cfg.Fabric)
	if cfg.Fabric.ListenAddr != "" {
		go func() {
			if err := node.ListenAndServe(ctx); err != nil {
				logger.Error("fabric node failed", slog.String("error", err.Error()))
			}
		}()
	}

	agent := client.New(node, cfg.ClientAddress, cfg.TargetAddress,
		client.WithTimeout(cfg.Timeout()),
		client.WithLogger(logger),
	)
	if err := agent.Bind(node); err != nil {
		return fmt.Errorf("failed to bind client: %w", err)
	}

	b := bridge.New(agent,
		bridge.WithLogger(logger),
		bridge.WithObserver(observability.NewSlogObserver(logger)),
	)

	defer func() {
		if err := node.Shutdown(5 * time.Second); err != nil {
			logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	if options.Stdio {
		logger.Info("bridge serving stdio",
			slog.String("target", cfg.TargetAddress),
		)
		return b.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	logger.Info("bridge serving http",
		slog.String("listen", cfg.ListenAddr),
		slog.String("target", cfg.TargetAddress),
	)
	return b.ListenAndServe(ctx, cfg.ListenAddr)
}

func loadConfig(options *Options) (*bridge.Config, error) {
	var cfg *bridge.Config
	if options.Config != "" {
		loaded, err := bridge.LoadConfig(options.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		defaults := bridge.DefaultConfig()
		cfg = &defaults
	}

	if options.Target != "" {
		cfg.TargetAddress = options.Target
	}
	if options.TargetEndpoint != "" {
		if cfg.Fabric.Routes == nil {
			cfg.Fabric.Routes = make(map[string]string)
		}
		cfg.Fabric.Routes[cfg.TargetAddress] = options.TargetEndpoint
	}
	if options.Port > 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", options.Port)
	}
	if options.ClientPort > 0 {
		cfg.Fabric.ListenAddr = fmt.Sprintf(":%d", options.ClientPort)
	}
	if options.TimeoutMS > 0 {
		cfg.TimeoutMS = options.TimeoutMS
	}
	return cfg, nil
}
