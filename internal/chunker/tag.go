package chunker

import "github.com/dshills/chunkstream/pkg/types"

// TagMatcher recognizes one fixed literal tag in a character stream, one
// character per call. A mismatch discards the partial match; the mismatching
// character may itself start a new match, but earlier characters are never
// revisited.
//
// The re-test of the mismatching character differs from a plain forward scan,
// which resets and drops that character: with tag "ab" the input "aab" matches
// here and would not match there. Self-overlapping tags still only restart
// forward, so "aa" matches once in "aaa".
type TagMatcher struct {
	tag    []rune
	text   string
	cursor int // Number of tag characters matched so far
}

// NewTagMatcher creates a matcher for tag
func NewTagMatcher(tag string) (*TagMatcher, error) {
	if tag == "" {
		return nil, types.ErrEmptyTag
	}
	return &TagMatcher{
		tag:  []rune(tag),
		text: tag,
	}, nil
}

// Feed consumes one character. It returns the tag text and true when r
// completes a match; the matcher is then back at its initial state.
func (m *TagMatcher) Feed(r rune) (string, bool) {
	if r == m.tag[m.cursor] {
		m.cursor++
	} else if m.cursor > 0 {
		m.cursor = 0
		if r == m.tag[0] {
			m.cursor = 1
		}
	}

	if m.cursor == len(m.tag) {
		m.cursor = 0
		return m.text, true
	}
	return "", false
}

// Cursor returns how many consecutive tag characters have matched
func (m *TagMatcher) Cursor() int {
	return m.cursor
}

// Partial returns the characters of the match in progress
func (m *TagMatcher) Partial() string {
	return string(m.tag[:m.cursor])
}

// Tag returns the literal being matched
func (m *TagMatcher) Tag() string {
	return m.text
}

// Len returns the tag length in characters
func (m *TagMatcher) Len() int {
	return len(m.tag)
}

func (m *TagMatcher) reset() {
	m.cursor = 0
}
