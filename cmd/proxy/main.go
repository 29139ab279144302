package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/tailored-agentic-units/toolbridge/proxy"
)

// Options are the proxy process flags. The proxy reads JSON-RPC from stdin
// and answers on stdout; the bridge it fronts is named by --url.
type Options struct {
	URL       string `short:"u" long:"url" env:"BRIDGE_URL" description:"bridge JSON-RPC endpoint URL"`
	Timeout   int    `long:"timeout" env:"MCP_TIMEOUT" description:"per-call timeout in seconds"`
	Verbose   bool   `short:"v" long:"verbose" description:"enable verbose logging to stderr"`
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

	level := slog.LevelInfo
	if options.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	opts := []proxy.Option{proxy.WithLogger(logger)}
	if options.Timeout > 0 {
		opts = append(opts, proxy.WithTimeout(time.Duration(options.Timeout)*time.Second))
	}

	p := proxy.New(options.URL, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("proxy started", slog.String("bridge_url", options.URL))
	return p.Run(ctx, os.Stdin, os.Stdout)
}
