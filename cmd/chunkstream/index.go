package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/chunkstream/internal/indexer"
	"github.com/dshills/chunkstream/internal/searcher"
	"github.com/dshills/chunkstream/internal/storage"
)

// indexFlags select and scan the files of a directory
type indexFlags struct {
	tagFlags
	include     []string
	exclude     []string
	maxFileSize int64
	force       bool
}

func (f *indexFlags) register(cmd *cobra.Command) {
	f.tagFlags.register(cmd)
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Glob patterns a file must match, e.g. '*.xml'")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Glob patterns of files or directories to skip")
	cmd.Flags().Int64Var(&f.maxFileSize, "max-file-size", 0, "Skip files larger than this many bytes (0: no limit)")
}

func (f *indexFlags) indexerConfig(a *app) (*indexer.Config, error) {
	cfg, err := f.chunkerConfig(a)
	if err != nil {
		return nil, err
	}
	return &indexer.Config{
		Chunker:      cfg,
		Mode:         f.mode(),
		BlockSize:    a.cfg.BlockSize,
		Workers:      a.cfg.Workers,
		Include:      f.include,
		Exclude:      f.exclude,
		MaxFileSize:  f.maxFileSize,
		ForceReindex: f.force,
	}, nil
}

func newIndexCmd(a *app) *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Extract and store the chunks of every file under a directory",
		Long: `Index walks a directory, extracts the chunks of each matching file and stores
them in the database for search. Unchanged files are skipped on later runs.
A file whose chunk overflows is recorded as failed and the run continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.indexerConfig(a)
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := indexer.New(store).IndexRoot(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			printStatistics(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.force, "force", false, "Rescan every file ignoring stored hashes")
	return cmd
}

func printStatistics(w io.Writer, stats *indexer.Statistics) {
	fmt.Fprint(w, color.CyanString("=== Index run %s ===\n", stats.RunID))
	fmt.Fprintf(w, "Files indexed:  %d\n", stats.FilesIndexed)
	fmt.Fprintf(w, "Files skipped:  %d\n", stats.FilesSkipped)
	fmt.Fprintf(w, "Files removed:  %d\n", stats.FilesRemoved)
	if stats.FilesFailed > 0 {
		fmt.Fprint(w, color.RedString("Files failed:   %d\n", stats.FilesFailed))
		for _, msg := range stats.ErrorMessages {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	} else {
		fmt.Fprintf(w, "Files failed:   %d\n", stats.FilesFailed)
	}
	fmt.Fprint(w, color.GreenString("Chunks created: %d\n", stats.ChunksCreated))
	fmt.Fprintf(w, "Characters:     %d\n", stats.CharsScanned)
	fmt.Fprintf(w, "Duration:       %s\n", stats.Duration.Round(1e6))
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit        int
		filePattern  string
		minRelevance float64
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "search <dir> <query>",
		Short: "Keyword search over the chunks of an indexed directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			resp, err := runSearch(cmd.Context(), store, args[0], searcher.SearchRequest{
				Query: args[1],
				Limit: limit,
				Filters: &storage.SearchFilters{
					FilePattern:  filePattern,
					MinRelevance: minRelevance,
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, resp.Results)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, color.YellowString("No results"))
				return nil
			}
			for _, r := range resp.Results {
				fmt.Fprint(out, color.CyanString("%d. %s #%d [%d,%d) ", r.Rank, r.File.Path, r.Seq, r.File.StartOffset, r.File.EndOffset))
				fmt.Fprint(out, color.GreenString("%.3f\n", r.RelevanceScore))
				fmt.Fprintln(out, r.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results (1-100)")
	cmd.Flags().StringVar(&filePattern, "pattern", "", "Glob on the relative file path")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "Minimum relevance score (0.0-1.0)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	return cmd
}

// runSearch resolves dir to its scan root and runs the query against it
func runSearch(ctx context.Context, store storage.Storage, dir string, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root, err := store.GetRoot(ctx, absDir)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s is not indexed; run 'chunkstream index %s' first", absDir, dir)
	}
	if err != nil {
		return nil, err
	}

	req.RootID = root.ID
	return searcher.NewSearcher(store).Search(ctx, req)
}
