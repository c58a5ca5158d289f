package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_SingleFlatSection(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(input), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "notes", tree.Title)
	require.Len(t, tree.Sections, 1)
	s := tree.Sections[0]
	assert.Equal(t, input, s.Text)
	assert.Empty(t, s.SectionPath)
	assert.Equal(t, 1, s.PageStart)
	assert.Equal(t, "text", s.Parser)
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, "empty", tree.Title)
	assert.Empty(t, tree.Sections)
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines collapse into one paragraph break.
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader("Para one.\n\n\n\nPara two."), "gaps.txt")
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	assert.Equal(t, "Para one.\n\nPara two.", tree.Sections[0].Text)
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader("Para one.\n   \r\nPara two.\r\n"), "ws.txt")
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	assert.Equal(t, "Para one.\n\nPara two.", tree.Sections[0].Text)
}
