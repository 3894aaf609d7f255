package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/chunkstream/internal/config"
	"github.com/dshills/chunkstream/internal/logger"
	"github.com/dshills/chunkstream/internal/storage"
	"github.com/dshills/chunkstream/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Exit codes
const (
	exitOK       = 0
	exitError    = 1
	exitOverflow = 2
)

// app holds state shared by all subcommands
type app struct {
	cfg      *config.Config
	dbPath   string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, types.ErrChunkOverflow):
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		return exitOverflow
	default:
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		return exitError
	}
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "chunkstream",
		Short: "Streaming tag-delimited chunk extractor",
		Long: `chunkstream scans text one character at a time and emits every complete
chunk that starts with an open tag and ends with a close tag.

Chunks can be printed straight from a file or stdin, or indexed per directory
into SQLite for keyword search. The serve command exposes the same operations
as MCP tools over stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Global().Close()
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Database directory (default $"+config.EnvDBPath+" or "+config.DefaultDBDir+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")

	root.AddCommand(
		newExtractCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration, applies global flags and installs the logger
func (a *app) setup() error {
	a.cfg = config.Load()
	if a.dbPath != "" {
		a.cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = logger.ParseLevel(a.logLevel)
	}
	if err := logger.Init(a.cfg.LogLevel, a.cfg.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openStore opens the chunk database named by the configuration
func (a *app) openStore() (storage.Storage, error) {
	dir, err := a.cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	store, err := storage.OpenDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chunkstream %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}
