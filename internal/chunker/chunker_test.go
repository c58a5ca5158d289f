package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/vecingest/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numbered returns n distinct words prefixed with p, e.g. "p0 p1 p2".
func numbered(p string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", p, i)
	}
	return out
}

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	tok := NewWords()
	text := strings.Join(numbered("w", 20), " ")

	windows, err := ChunkText(tok, text, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, text, windows[0].Text)
	assert.Equal(t, 0, windows[0].SpanStart)
	assert.Equal(t, 20, windows[0].SpanEnd)
}

func TestChunkText_EmptyTextYieldsNothing(t *testing.T) {
	windows, err := ChunkText(NewWords(), "", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestChunkText_RejectsOverlapNotBelowMax(t *testing.T) {
	tests := []Config{
		{MaxTokens: 50, Overlap: 50},
		{MaxTokens: 50, Overlap: 80},
		{MaxTokens: 0, Overlap: 0},
		{MaxTokens: 10, Overlap: -1},
	}
	for _, cfg := range tests {
		_, err := ChunkText(NewWords(), "some text", cfg)
		require.Error(t, err, "cfg=%+v", cfg)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "cfg=%+v", cfg)
	}
}

func TestChunkText_FinalWindowIsShort(t *testing.T) {
	words := numbered("w", 600)
	windows, err := ChunkText(NewWords(), strings.Join(words, " "), Config{MaxTokens: 500, Overlap: 50})
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, strings.Join(words[0:500], " "), windows[0].Text)
	assert.Equal(t, strings.Join(words[450:600], " "), windows[1].Text)
	assert.Equal(t, 450, windows[1].SpanStart)
	assert.Equal(t, 600, windows[1].SpanEnd)
}

func TestChunkText_CountMatchesStrideFormula(t *testing.T) {
	configs := []Config{
		{MaxTokens: 500, Overlap: 50},
		{MaxTokens: 10, Overlap: 3},
		{MaxTokens: 7, Overlap: 0},
		{MaxTokens: 2, Overlap: 1},
	}
	for _, cfg := range configs {
		for n := 1; n <= 1200; n += 37 {
			windows, err := ChunkText(NewWords(), strings.Join(numbered("t", n), " "), cfg)
			require.NoError(t, err)

			stride := cfg.Stride()
			want := (max(1, n-cfg.Overlap) + stride - 1) / stride
			assert.Len(t, windows, want, "n=%d cfg=%+v", n, cfg)
		}
	}
}

func TestChunkText_NonOverlappingPartsReconstructTokens(t *testing.T) {
	tok := NewWords()
	words := numbered("x", 1234)
	cfg := Config{MaxTokens: 100, Overlap: 15}

	windows, err := ChunkText(tok, strings.Join(words, " "), cfg)
	require.NoError(t, err)

	var rebuilt []string
	next := 0
	for _, w := range windows {
		parts := strings.Fields(w.Text)
		require.Equal(t, w.SpanEnd-w.SpanStart, len(parts))
		require.LessOrEqual(t, len(parts), cfg.MaxTokens)
		skip := next - w.SpanStart
		rebuilt = append(rebuilt, parts[skip:]...)
		next = w.SpanEnd
	}
	assert.Equal(t, words, rebuilt)
}

func TestChunkText_WindowRoundTripsThroughTokenizer(t *testing.T) {
	tok := NewWords()
	text := strings.Join(numbered("r", 300), " ")
	tokens := tok.Encode(text)

	windows, err := ChunkText(tok, text, Config{MaxTokens: 64, Overlap: 8})
	require.NoError(t, err)
	for _, w := range windows {
		assert.Equal(t, tokens[w.SpanStart:w.SpanEnd], tok.Encode(w.Text))
	}
}

func TestChunkSections_TwoPageScenario(t *testing.T) {
	page1 := numbered("a", 600)
	page2 := numbered("b", 100)
	sections := []doctree.Section{
		{Text: strings.Join(page1, " "), PageStart: 1, PageEnd: 1, Parser: "pdf"},
		{Text: strings.Join(page2, " "), PageStart: 2, PageEnd: 2, Parser: "pdf"},
	}

	chunks, err := ChunkSections(NewWords(), sections, Config{MaxTokens: 500, Overlap: 50})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, strings.Join(page1[0:500], " "), chunks[0].Text)
	assert.Equal(t, strings.Join(page1[450:600], " "), chunks[1].Text)
	assert.Equal(t, strings.Join(page2, " "), chunks[2].Text)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "pdf", c.Parser)
		assert.False(t, c.OCR)
	}
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[1].PageEnd)
	assert.Equal(t, 2, chunks[2].PageStart)
	assert.Equal(t, 2, chunks[2].PageEnd)
}

func TestChunkSections_EmptySectionSkipped(t *testing.T) {
	sections := []doctree.Section{
		{Text: "", PageStart: 1, PageEnd: 1},
		{Text: "only words here", PageStart: 2, PageEnd: 2},
		{Text: "", PageStart: 3, PageEnd: 3},
	}
	chunks, err := ChunkSections(NewWords(), sections, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 2, chunks[0].PageStart)
}

func TestChunkSections_NeverMixesSections(t *testing.T) {
	sections := []doctree.Section{
		{Text: strings.Join(numbered("left", 3), " "), SectionPath: []string{"L"}},
		{Text: strings.Join(numbered("right", 3), " "), SectionPath: []string{"R"}},
	}
	chunks, err := ChunkSections(NewWords(), sections, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.NotContains(t, chunks[0].Text, "right")
	assert.NotContains(t, chunks[1].Text, "left")
	assert.Equal(t, []string{"L"}, chunks[0].SectionPath)
	assert.Equal(t, []string{"R"}, chunks[1].SectionPath)
}

func TestChunkSections_IndexIsContiguousAcrossSections(t *testing.T) {
	var sections []doctree.Section
	for i := range 5 {
		sections = append(sections, doctree.Section{
			Text:      strings.Join(numbered(fmt.Sprintf("s%d_", i), 30+i*17), " "),
			PageStart: i + 1,
			PageEnd:   i + 1,
		})
	}
	chunks, err := ChunkSections(NewWords(), sections, Config{MaxTokens: 20, Overlap: 5})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunkSections_CopiesSectionPath(t *testing.T) {
	path := []string{"A", "B"}
	chunks, err := ChunkSections(NewWords(), []doctree.Section{{Text: "x y", SectionPath: path}}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	path[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, chunks[0].SectionPath)
}

func TestChunkSections_InvalidConfigFailsBeforeOutput(t *testing.T) {
	chunks, err := ChunkSections(NewWords(), []doctree.Section{{Text: "a b c"}}, Config{MaxTokens: 5, Overlap: 5})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, chunks)
}

func TestWords_Deterministic(t *testing.T) {
	tok := NewWords()
	a := tok.Encode("the cat the dog")
	assert.Equal(t, []int{0, 1, 0, 2}, a)
	assert.Equal(t, "the cat the dog", tok.Decode(a))
	assert.Equal(t, "cat dog", tok.Decode([]int{1, 2, 99}))
}
