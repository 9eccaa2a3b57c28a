// Command toolserver runs a demo MCP tool server over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wagiedev/toolserver-go"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel         string
		logBodies        bool
		disabledTools    string
		disabledToolkits string
	)

	cmd := &cobra.Command{
		Use:   "toolserver",
		Short: "Serve a tool catalog over MCP on stdio",
		Long: `toolserver exposes a catalog of tools over the Model Context Protocol,
speaking JSON-RPC 2.0 on newline-delimited stdin/stdout. All logging goes
to stderr so the protocol stream stays clean.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logLevel, logBodies, disabledTools, disabledToolkits)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&logBodies, "log-bodies", false, "include request parameters in logs")
	cmd.Flags().StringVar(&disabledTools, "disabled-tools",
		os.Getenv("TOOLSERVER_DISABLED_TOOLS"),
		`comma-separated "Toolkit.Tool" pairs to disable`)
	cmd.Flags().StringVar(&disabledToolkits, "disabled-toolkits",
		os.Getenv("TOOLSERVER_DISABLED_TOOLKITS"),
		"comma-separated toolkit names to disable")

	return cmd
}

func run(ctx context.Context, logLevel string, logBodies bool, disabledTools, disabledToolkits string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Stdout carries the protocol; logs must go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))

	cat := toolserver.NewCatalog(log, toolserver.CatalogConfig{
		DisabledTools:    disabledTools,
		DisabledToolkits: disabledToolkits,
	})

	if err := registerMathToolkit(cat); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	srv := toolserver.NewServer(cat, toolserver.ServerOptions{
		Name:          "toolserver",
		Version:       version,
		Logger:        log,
		EnableLogging: true,
		LogBodies:     logBodies,
		Secrets:       os.LookupEnv,
	})

	log.Info("Starting stdio server", "tools", cat.Len())

	if err := toolserver.ServeStdio(ctx, log, srv); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
