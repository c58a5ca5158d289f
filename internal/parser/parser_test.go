package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile_SelectsByExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     any
	}{
		{"a.pdf", &PDFParser{}},
		{"A.PDF", &PDFParser{}},
		{"notes.md", &MarkdownParser{}},
		{"notes.markdown", &MarkdownParser{}},
		{"page.html", &HTMLParser{}},
		{"page.htm", &HTMLParser{}},
		{"plain.txt", &TextParser{}},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename, Options{})
		require.NoError(t, err, tt.filename)
		assert.IsType(t, tt.want, p, tt.filename)
	}
}

func TestForFile_Unsupported(t *testing.T) {
	for _, name := range []string{"report.docx", "data.csv", "noext"} {
		p, err := ForFile(name, Options{})
		assert.Nil(t, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), name)
		assert.False(t, IsSupportedExtension(name))
	}
}

func TestForFile_PassesPDFFallback(t *testing.T) {
	p, err := ForFile("x.pdf", Options{PDFFallbackPdftotext: true})
	require.NoError(t, err)
	assert.True(t, p.(*PDFParser).FallbackPdftotext)
}

func TestAppendPath(t *testing.T) {
	tests := []struct {
		path  []string
		level int
		title string
		want  []string
	}{
		{nil, 1, "A", []string{"A"}},
		{[]string{"A"}, 2, "B", []string{"A", "B"}},
		{[]string{"A", "B"}, 2, "C", []string{"A", "C"}},
		{[]string{"A", "B"}, 1, "D", []string{"D"}},
		{[]string{"A"}, 3, "E", []string{"A", "E"}},
		{nil, 4, "F", []string{"F"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, appendPath(tt.path, tt.level, tt.title), "path=%v level=%d", tt.path, tt.level)
	}
}

func TestAppendPath_DoesNotAliasInput(t *testing.T) {
	path := []string{"A", "B", "C"}
	next := appendPath(path, 2, "X")
	assert.Equal(t, []string{"A", "X"}, next)
	assert.Equal(t, []string{"A", "B", "C"}, path)
}
