package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/chunkstream/internal/indexer"
	"github.com/dshills/chunkstream/internal/logger"
	"github.com/dshills/chunkstream/internal/mcp"
	"github.com/dshills/chunkstream/internal/storage"
	"github.com/dshills/chunkstream/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve exposes extract_chunks, index_directory, search_chunks and get_status as
MCP tools. Stdout carries the protocol; logs go to stderr or $CHUNKSTREAM_LOG_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Global().WithPrefix("serve")
			log.Info("chunkstream MCP server %s starting (build mode: %s, driver: %s)",
				version, storage.BuildMode, storage.DriverName)

			server, err := mcp.NewServer(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx := cmd.Context()
			errChan := make(chan error, 1)
			go func() {
				log.Info("MCP server ready, listening on stdio...")
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutting down: %v", context.Cause(ctx))
				return nil
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}
			log.Info("server stopped")
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		flags    indexFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index a directory and keep the index current as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.indexerConfig(a)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			idx := indexer.New(store)

			stats, err := idx.IndexRoot(ctx, dir, cfg)
			if err != nil {
				return err
			}
			printStatistics(out, stats)

			w, err := watcher.New(dir, watcher.Options{
				IgnoreDirs:  flags.exclude,
				IgnoreFiles: flags.exclude,
				Debounce:    debounce,
			}, func(ctx context.Context, changes *watcher.Changes) error {
				printChanges(out, changes)
				stats, err := idx.IndexRoot(ctx, dir, cfg)
				if err != nil {
					return err
				}
				printStatistics(out, stats)
				return nil
			})
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			fmt.Fprintln(out, color.GreenString("Watching %s (Ctrl-C to stop)", dir))
			err = w.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before changes are reindexed")
	return cmd
}

func printChanges(w io.Writer, changes *watcher.Changes) {
	for _, p := range changes.Created {
		fmt.Fprint(w, color.GreenString("+ %s\n", p))
	}
	for _, p := range changes.Modified {
		fmt.Fprint(w, color.YellowString("~ %s\n", p))
	}
	for _, p := range changes.Removed {
		fmt.Fprint(w, color.RedString("- %s\n", p))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
