package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/internal/stream"
	"github.com/dshills/chunkstream/pkg/types"
)

// tagFlags are the extractor settings shared by extract, index and watch
type tagFlags struct {
	openTag  string
	closeTag string
	maxSize  int
	nested   string
	byteMode bool
}

func (f *tagFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.openTag, "open", "", "Open tag literal (default $CHUNKSTREAM_OPEN_TAG)")
	cmd.Flags().StringVar(&f.closeTag, "close", "", "Close tag literal (default $CHUNKSTREAM_CLOSE_TAG)")
	cmd.Flags().IntVar(&f.maxSize, "max-size", 0, "Largest chunk in characters (default $CHUNKSTREAM_MAX_CHUNK_SIZE or 4 MiB)")
	cmd.Flags().StringVar(&f.nested, "nested", "", "Repeated open tag inside a chunk: append, restart or error")
	cmd.Flags().BoolVar(&f.byteMode, "bytes", false, "Treat each byte as one character")
}

// chunkerConfig merges flags over the loaded configuration
func (f *tagFlags) chunkerConfig(a *app) (chunker.Config, error) {
	if f.maxSize < 0 {
		return chunker.Config{}, types.ErrInvalidMaxChunkSize
	}
	cfg := a.cfg.ChunkerConfig(f.openTag, f.closeTag, f.maxSize)
	if f.nested != "" {
		policy, err := chunker.ParseNestedOpenPolicy(f.nested)
		if err != nil {
			return chunker.Config{}, err
		}
		cfg.NestedOpen = policy
	}
	return cfg, nil
}

func (f *tagFlags) mode() charsource.Mode {
	if f.byteMode {
		return charsource.ModeBytes
	}
	return charsource.ModeText
}

// chunkLine is one line of --json output
type chunkLine struct {
	Seq     int    `json:"seq"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	SHA256  string `json:"sha256"`
	Content string `json:"content"`
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		flags   tagFlags
		jsonOut bool
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Print every chunk in a file or stdin",
		Long: `Extract scans the input once and prints each complete chunk as soon as its
close tag is read. Gzip input is decompressed. With no file, or '-', stdin is read.

A chunk larger than --max-size stops the scan and exits with status 2.`,
		Example: `  chunkstream extract --open '<item>' --close '</item>' feed.xml
  curl -s https://example.com/feed | chunkstream extract --open '<item>' --close '</item>' --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := flags.chunkerConfig(a)
			if err != nil {
				return err
			}
			ex, err := chunker.New(cfg)
			if err != nil {
				return err
			}

			var src *charsource.Reader
			if path == "-" {
				src = charsource.NewReader(cmd.InOrStdin(), flags.mode(), a.cfg.BlockSize)
			} else {
				src, err = charsource.Open(path, flags.mode(), a.cfg.BlockSize)
				if err != nil {
					return err
				}
			}
			defer func() { _ = src.Close() }()

			out := cmd.OutOrStdout()
			emit := printChunk
			if jsonOut {
				emit = printChunkJSON
			}

			res, err := stream.Scan(cmd.Context(), src, ex, func(c *types.Chunk) error {
				return emit(out, c)
			})
			if !quiet && !jsonOut && res != nil {
				summary := fmt.Sprintf("%d chunks, %d characters scanned", res.Chunks, res.Chars)
				if err == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString(summary))
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString(summary))
				}
			}

			var overflow *types.ChunkOverflowError
			if errors.As(err, &overflow) {
				return fmt.Errorf("%s: %w", path, overflow)
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print one JSON object per chunk")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the summary line")
	return cmd
}

func printChunk(w io.Writer, c *types.Chunk) error {
	header := color.CyanString("# %d [%d,%d)", c.Seq, c.Start, c.End)
	_, err := fmt.Fprintf(w, "%s\n%s\n", header, c.Content)
	return err
}

func printChunkJSON(w io.Writer, c *types.Chunk) error {
	return json.NewEncoder(w).Encode(chunkLine{
		Seq:     c.Seq,
		Start:   c.Start,
		End:     c.End,
		SHA256:  hex.EncodeToString(c.ContentHash[:]),
		Content: c.Content,
	})
}
