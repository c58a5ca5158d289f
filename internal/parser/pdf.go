package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"code.sajari.com/docconv"
	"github.com/dgallion1/vecingest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	pdfParserName       = "pdf"
	pdftotextParserName = "pdftotext"
)

var disablePdfcpuConfig sync.Once

// PDFParser handles PDF files, one Section per page. pdfcpu validates the
// file and counts pages; ledongthuc/pdf extracts the text. When extraction
// fails and FallbackPdftotext is set, pdftotext (via docconv) produces a
// single Section spanning every page.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pageCount, err := countPages(data)
	if err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}

	pages, err := extractPages(data)
	if err == nil && len(pages) == 0 && pageCount > 0 {
		err = fmt.Errorf("no pages extracted from %d-page document", pageCount)
	}
	if err != nil {
		if !p.FallbackPdftotext {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		text, ferr := extractPdftotext(data)
		if ferr != nil {
			return nil, fmt.Errorf("extract pdf text: %w (fallback: %v)", err, ferr)
		}
		tree.Sections = []doctree.Section{{
			Text:      strings.TrimSpace(text),
			PageStart: 1,
			PageEnd:   max(pageCount, 1),
			Parser:    pdftotextParserName,
		}}
		return tree, nil
	}

	tree.Sections = pageSections(pages)
	return tree, nil
}

// pageSections turns per-page text into page-oriented sections. Blank pages
// are kept so page numbers stay aligned; they produce no chunks.
func pageSections(pages []string) []doctree.Section {
	sections := make([]doctree.Section, 0, len(pages))
	for i, text := range pages {
		sections = append(sections, doctree.Section{
			Text:      strings.TrimSpace(text),
			PageStart: i + 1,
			PageEnd:   i + 1,
			Parser:    pdfParserName,
		})
	}
	return sections
}

func countPages(data []byte) (int, error) {
	disablePdfcpuConfig.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func extractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPdftotext(data []byte) (string, error) {
	text, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return text, nil
}
