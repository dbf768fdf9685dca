// Package main provides the sourcemap binary entry point.
// Sourcemap locates the point sources of a rupture description in a
// partitioned tetrahedral mesh and maps them onto the time clusters of every
// rank.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sourcemap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Point source localization and LTS cluster mapping",
		Long: `Sourcemap reads an FSRM or NRF rupture description, finds the mesh
element containing every point source, resolves sources found by several
ranks in favour of the lowest rank and maps the survivors onto the local
time stepping clusters of each rank.

Ranks are simulated in-process, one goroutine per mesh partition.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(loadCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func loadCmd(logLevel *string) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a rupture description onto a partitioned mesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = newLogger(*logLevel)
			return runLoad(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&opts.sources, "sources", "", "Rupture description, overrides sources.path")
	cmd.Flags().StringVar(&opts.format, "format", "", "Rupture format fsrm or nrf, overrides sources.format")
	cmd.Flags().IntVar(&opts.ranks, "ranks", 0, "Number of simulated ranks, overrides partition.ranks")
	cmd.Flags().BoolVar(&opts.printMetrics, "metrics", false, "Print load metrics")

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
