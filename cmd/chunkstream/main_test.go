package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/chunkstream/internal/config"
	"github.com/dshills/chunkstream/pkg/types"
)

// run executes the command tree with args and returns stdout and stderr
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return runContext(t, context.Background(), stdin, args...)
}

func runContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvLogLevel, "none")

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestExtract_Stdin(t *testing.T) {
	out, errOut, err := run(t, "<root><a><tag>hello</tag><b><tag>bye</tag></root>",
		"extract", "--open", "<tag>", "--close", "</tag>")
	require.NoError(t, err)

	assert.Contains(t, out, "# 0 [9,25)\n<tag>hello</tag>\n")
	assert.Contains(t, out, "<tag>bye</tag>")
	assert.Contains(t, errOut, "2 chunks, 49 characters scanned")
}

func TestExtract_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte("<i>one</i> noise <i>two</i>"), 0644))

	out, _, err := run(t, "", "extract", "--open", "<i>", "--close", "</i>", "--json", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first chunkLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 0, first.Seq)
	assert.Equal(t, "<i>one</i>", first.Content)
	assert.Equal(t, int64(0), first.Start)
	assert.Equal(t, int64(10), first.End)
	assert.Len(t, first.SHA256, 64)
}

func TestExtract_TagsFromEnvironment(t *testing.T) {
	t.Setenv(config.EnvOpenTag, "[")
	t.Setenv(config.EnvCloseTag, "]")

	out, _, err := run(t, "a[b]c", "extract", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "[b]")
}

func TestExtract_Overflow(t *testing.T) {
	out, _, err := run(t, "<tag>ok</tag><tag>much too long</tag>",
		"extract", "--open", "<tag>", "--close", "</tag>", "--max-size", "14")
	require.Error(t, err)

	assert.True(t, errors.Is(err, types.ErrChunkOverflow))
	assert.Equal(t, exitOverflow, exitCode(err))
	assert.Contains(t, out, "<tag>ok</tag>")
}

func TestExtract_InvalidFlags(t *testing.T) {
	_, _, err := run(t, "x", "extract", "--open", "<tag>", "--close", "</tag>", "--nested", "sideways")
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))

	_, _, err = run(t, "x", "extract")
	assert.ErrorIs(t, err, types.ErrEmptyTag)
}

func TestIndexAndSearch(t *testing.T) {
	t.Setenv(config.EnvDBPath, t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<tag>red apples</tag><tag>pears</tag>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte("<tag>this one is far too long</tag>"), 0644))

	out, _, err := run(t, "", "index", "--open", "<tag>", "--close", "</tag>", "--max-size", "21", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Files indexed:  1")
	assert.Contains(t, out, "Files failed:   1")
	assert.Contains(t, out, "Chunks created: 2")

	out, _, err = run(t, "", "search", "--json", dir, "apples")
	require.NoError(t, err)

	var results []types.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "a.xml", results[0].File.Path)
	assert.Equal(t, "<tag>red apples</tag>", results[0].Content)

	out, _, err = run(t, "", "search", dir, "bananas")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearch_NotIndexed(t *testing.T) {
	t.Setenv(config.EnvDBPath, t.TempDir())
	_, _, err := run(t, "", "search", t.TempDir(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not indexed")
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chunkstream dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
	assert.Equal(t, exitOverflow, exitCode(&types.ChunkOverflowError{Limit: 1, Offset: 2}))
}

func TestWatch_InvalidArguments(t *testing.T) {
	t.Setenv(config.EnvDBPath, t.TempDir())

	_, _, err := run(t, "", "watch")
	require.Error(t, err)

	_, _, err = run(t, "", "watch", "--open", "<tag>", "--close", "</tag>", "--nested", "sideways", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested open policy")

	_, _, err = run(t, "", "watch", t.TempDir())
	assert.ErrorIs(t, err, types.ErrEmptyTag)

	missing := filepath.Join(t.TempDir(), "missing")
	_, _, err = run(t, "", "watch", "--open", "<tag>", "--close", "</tag>", missing)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWatch_IndexesThenStopsOnCancel(t *testing.T) {
	t.Setenv(config.EnvDBPath, t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<tag>one</tag>"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, _, err := runContext(t, ctx, "", "watch", "--open", "<tag>", "--close", "</tag>", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Files indexed:  1")
	assert.Contains(t, out, "Watching "+dir)
}

func TestServe_InvalidArguments(t *testing.T) {
	_, _, err := run(t, "", "serve", "extra")
	require.Error(t, err)

	// A regular file where the database directory should be
	dbPath := filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0644))
	t.Setenv(config.EnvDBPath, dbPath)

	_, _, err = run(t, "", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create MCP server")
}
