// Package cli defines the relay's cobra root command: flag parsing, logger
// setup, and the top-level run loop wiring config, server, and console.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/console"
	"github.com/luludotdev/smoorelay/pkg/server"
)

// DefaultPort is used when neither argv nor the config file specify one
// (spec.md §6).
const DefaultPort = 1027

// DefaultHost is used when neither argv nor the config file specify one.
const DefaultHost = "0.0.0.0"

var (
	flagHost    string
	flagPort    uint16
	flagVerbose int
)

// NewRootCommand builds the cobra command tree for the relay binary.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoorelay",
		Short: "A relay server for a multiplayer action-platformer mod",
		RunE:  runRelay,
	}

	cmd.Flags().StringVar(&flagHost, "host", "", "listen host (overrides config.toml)")
	cmd.Flags().Uint16Var(&flagPort, "port", 0, "listen port (overrides config.toml)")
	cmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")

	return cmd
}

func newLogger(verbosity int) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbosity >= 3:
		level = zerolog.TraceLevel
	case verbosity >= 1:
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// resolveAddr implements spec.md §6: argv host-override -> config host ->
// 0.0.0.0; argv port-override -> config port -> 1027.
func resolveAddr(cfg config.Config) string {
	host := DefaultHost
	if cfg.Server.Host != "" {
		host = cfg.Server.Host
	}
	if flagHost != "" {
		host = flagHost
	}

	port := uint16(DefaultPort)
	if cfg.Server.Port != 0 {
		port = cfg.Server.Port
	}
	if flagPort != 0 {
		port = flagPort
	}

	return fmt.Sprintf("%s:%d", host, port)
}

func runRelay(cmd *cobra.Command, args []string) error {
	log := newLogger(flagVerbose)

	cfgDoc, err := config.Load(config.DefaultPath)
	if err != nil {
		return fmt.Errorf("fatal: config: %w", err)
	}
	shared := config.NewShared(config.DefaultPath, cfgDoc)

	srv, err := server.New(shared, log)
	if err != nil {
		return fmt.Errorf("fatal: server: %w", err)
	}

	addr := resolveAddr(shared.Get())
	if err := srv.Listen(addr); err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	consoleDone := make(chan bool, 1)
	go func() {
		c := console.New(srv, shared, log, os.Stdin, os.Stdout)
		consoleDone <- c.Run()
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-consoleDone:
		log.Info().Msg("console requested shutdown")
	}

	cancel()
	srv.Shutdown()

	if err := <-errCh; err != nil {
		return fmt.Errorf("server run: %w", err)
	}
	return nil
}
