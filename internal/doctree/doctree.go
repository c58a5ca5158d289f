package doctree

import "strings"

// PathSeparator joins section path labels for display and storage.
const PathSeparator = " > "

// DocTree is the parsed form of one document: its sections in document order.
type DocTree struct {
	Title    string    // Document title (from metadata or filename)
	Sections []Section // Ordered, one per page or heading run
}

// Section is a run of extracted text with its provenance.
type Section struct {
	Text        string
	PageStart   int      // 1-based, inclusive
	PageEnd     int      // 1-based, inclusive
	SectionPath []string // Heading hierarchy, e.g. ["Financial Results", "Revenue"]
	Parser      string   // Which parser produced the section
	OCR         bool
}

// Chunk is a token window of a single Section, ready for embedding.
type Chunk struct {
	Text        string
	Index       int // Position within the document's chunk sequence
	PageStart   int
	PageEnd     int
	SectionPath []string
	Parser      string
	OCR         bool

	// Token offsets of the window within its section, half-open.
	SpanStart int
	SpanEnd   int
}

// JoinPath renders a section path for display.
func JoinPath(path []string) string {
	return strings.Join(path, PathSeparator)
}

// Parser returns the parser of the first section, or "" for an empty tree.
func (t *DocTree) Parser() string {
	if t == nil || len(t.Sections) == 0 {
		return ""
	}
	return t.Sections[0].Parser
}
