package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/vecingest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const markdownParserName = "markdown"

// MarkdownParser handles Markdown files using goldmark. Every run of block
// text between headings becomes one Section whose path is the stack of
// enclosing heading titles.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}

	var path []string
	var current bytes.Buffer

	flushText := func() {
		t := strings.TrimSpace(current.String())
		if t != "" {
			tree.Sections = append(tree.Sections, doctree.Section{
				Text:        t,
				PageStart:   1,
				PageEnd:     1,
				SectionPath: path,
				Parser:      markdownParserName,
			})
		}
		current.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flushText()
			// appendPath always allocates, so earlier sections keep their path.
			path = appendPath(path, node.Level, linesText(node, src, " "))

		default:
			t := blockText(n, src)
			if t != "" {
				if current.Len() > 0 {
					current.WriteString("\n\n")
				}
				current.WriteString(t)
			}
		}
	}
	flushText()

	return tree, nil
}

// blockText returns the source text of a block. Leaf blocks carry their
// lines directly; containers such as lists and blockquotes are walked.
func blockText(n ast.Node, src []byte) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	if n.Lines().Len() > 0 {
		return linesText(n, src, "")
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func linesText(n ast.Node, src []byte, sep string) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		if i > 0 {
			buf.WriteString(sep)
		}
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSpace(buf.String())
}
