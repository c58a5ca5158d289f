package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/vecingest/internal/doctree"
)

const textParserName = "text"

// TextParser handles plain text files as one flat section.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}
	if text := normalizeParagraphs(string(data)); text != "" {
		tree.Sections = []doctree.Section{{
			Text:      text,
			PageStart: 1,
			PageEnd:   1,
			Parser:    textParserName,
		}}
	}
	return tree, nil
}

// normalizeParagraphs collapses runs of blank or whitespace-only lines into
// a single paragraph break.
func normalizeParagraphs(s string) string {
	var paragraphs []string
	var current strings.Builder

	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
