package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xiaozhi-community/mcp-pipe/pipe"
)

func main() {
	app := &cli.App{
		Name:  "mcp-pipe",
		Usage: "bridge a stdio MCP server to a remote WebSocket endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "Authentication token (overrides XIAOZHI_TOKEN).",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "WebSocket endpoint URL (overrides XIAOZHI_ENDPOINT).",
			},
			&cli.StringFlag{
				Name:  "command",
				Usage: "Child command to supervise (overrides MCP_SCRIPT).",
			},
			&cli.StringFlag{
				Name:  "status-addr",
				Usage: "Address for the local HTTP status endpoint (overrides MCP_PIPE_STATUS_ADDR).",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging.",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := pipe.Load()
	if err != nil {
		return err
	}
	if c.IsSet("token") {
		cfg.Token = c.String("token")
	}
	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("command") {
		cfg.Command = c.String("command")
	}
	if c.IsSet("status-addr") {
		cfg.StatusAddr = c.String("status-addr")
	}

	logger, err := buildLogger(c.Bool("debug"))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()
	slog := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		var cfgErr *pipe.ConfigError
		if errors.As(err, &cfgErr) {
			slog.Error(cfgErr.Reason)
			for _, line := range cfgErr.Remediation {
				slog.Error(line)
			}
			return cli.Exit("", 1)
		}
		return err
	}

	p := pipe.New(cfg, slog)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Infof("received signal %s, shutting down", sig)
		p.Stop()
	}()

	if cfg.StatusAddr != "" {
		status := pipe.NewStatusServer(p, slog)
		defer status.Close()
		go func() {
			if err := status.ListenAndServe(cfg.StatusAddr); err != nil {
				slog.Errorf("status server: %s", err)
			}
		}()
	}

	slog.Infof("bridging %q to %s", cfg.Command, cfg.Endpoint)
	p.Run(context.Background())
	return nil
}

// buildLogger writes human-readable logs to stderr; stdout stays free for
// anything piping the binary.
func buildLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if !debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return zcfg.Build()
}
