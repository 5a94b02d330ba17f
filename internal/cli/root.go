// Package cli provides the command-line interface for liveoverlay.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/system"
)

// Version is set at build time.
var Version = "dev"

// app holds state shared by all subcommands of one invocation.
type app struct {
	logFile  string
	logLevel string
	logger   *slog.Logger
	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.DiscardHandler), closeLog: func() error { return nil }}

	root := &cobra.Command{
		Use:   "liveoverlay",
		Short: "Animated bounding-box overlays for live and recorded detections",
		Long: `liveoverlay turns a stream of per-frame object detections into smoothly
animated overlays: boxes glide to new positions, fade in when an object
appears and fade out after it disappears.

Detections come from a recorded YAML scenario (render), from newline-delimited
JSON on stdin (live), or from the built-in contrast detector (scenario generate).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, level := config.LogSettings()
			if cmd.Flags().Changed("log-file") {
				file = a.logFile
			}
			if cmd.Flags().Changed("log-level") {
				level = config.ParseLogLevel(a.logLevel)
			}
			a.logger, a.closeLog = config.SetupLogger(file, level)
			slog.SetDefault(a.logger)

			if cmd.Name() != "version" {
				system.InitResourceLimits(a.logger)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	root.PersistentFlags().StringVar(&a.logFile, "log-file", config.DefaultLogFile, "JSON log file (empty for stderr only)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "INFO", "Log level: DEBUG, INFO, WARN, ERROR")

	root.AddCommand(
		newRenderCmd(a),
		newLiveCmd(a),
		newScenarioCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with SIGINT/SIGTERM cancelling the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "liveoverlay %s\n", Version)
		},
	}
}
