package charsource

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/chunkstream/internal/chunker"
)

func drain(t *testing.T, src Source) []rune {
	t.Helper()
	var out []rune
	for ch, err := range Chars(src) {
		require.NoError(t, err)
		out = append(out, ch)
	}
	return out
}

func extractAll(t *testing.T, src Source) []string {
	t.Helper()
	ex, err := chunker.New(chunker.Config{OpenTag: "<tag>", CloseTag: "</tag>"})
	require.NoError(t, err)

	var chunks []string
	for ch, err := range Chars(src) {
		require.NoError(t, err)
		chunk, err := ex.Feed(ch)
		require.NoError(t, err)
		if chunk != nil {
			chunks = append(chunks, chunk.Content)
		}
	}
	return chunks
}

const document = `<root>
    <crap>
        <tag>hello world</tag>
    </crap>
    <crap>
        <tag>goodbye world</tag>
    </crap>
</root>`

func TestReader_TextMode(t *testing.T) {
	src := NewReader(strings.NewReader("héllo"), ModeText, 0)
	assert.Equal(t, []rune("héllo"), drain(t, src))
	assert.Equal(t, ModeText, src.Mode())
}

func TestReader_BytesMode(t *testing.T) {
	src := NewReader(strings.NewReader("hé"), ModeBytes, 0)
	// 'é' is two bytes in UTF-8, each becomes its own character
	assert.Equal(t, []rune{'h', 0xc3, 0xa9}, drain(t, src))
}

func TestReader_SmallBlocksSpanRunes(t *testing.T) {
	input := strings.Repeat("日本語", 20)
	src := NewReader(strings.NewReader(input), ModeText, 1)
	assert.Equal(t, []rune(input), drain(t, src))
}

func TestReader_EOF(t *testing.T) {
	src := NewReader(strings.NewReader(""), ModeText, 0)
	_, err := src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFromString(t *testing.T) {
	assert.Equal(t, []rune("a«b»c"), drain(t, FromString("a«b»c")))
	assert.Empty(t, drain(t, FromString("")))
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestChars_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	src := NewReader(failingReader{err: boom}, ModeText, 0)

	var errs []error
	for _, err := range Chars(src) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestChars_StopsEarly(t *testing.T) {
	var got []rune
	for ch := range Chars(FromString("abcdef")) {
		got = append(got, ch)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []rune("ab"), got)
}

func TestByteAndTextSourcesAgree(t *testing.T) {
	expect := []string{"<tag>hello world</tag>", "<tag>goodbye world</tag>"}

	for _, block := range []int{16, 64, DefaultBlockSize} {
		text := NewReader(strings.NewReader(document), ModeText, block)
		raw := NewReader(bytes.NewReader([]byte(document)), ModeBytes, block)

		assert.Equal(t, expect, extractAll(t, text))
		assert.Equal(t, expect, extractAll(t, raw))
	}
	assert.Equal(t, expect, extractAll(t, FromString(document)))
}

func TestOpen_PlainAndGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "feed.xml")
	require.NoError(t, os.WriteFile(plain, []byte(document), 0644))

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(document))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	// No .gz suffix: detection relies on the magic number
	compressed := filepath.Join(dir, "feed.bin")
	require.NoError(t, os.WriteFile(compressed, buf.Bytes(), 0644))

	for _, path := range []string{plain, compressed} {
		src, err := Open(path, ModeText, 0)
		require.NoError(t, err)
		assert.Equal(t, []rune(document), drain(t, src))
		assert.NoError(t, src.Close())
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), ModeText, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
