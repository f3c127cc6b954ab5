package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/markforest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. Text comes from ledongthuc/pdf, or from
// pdftotext when the library fails and FallbackPdftotext is set.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// The pdf reader needs a file it can seek.
	tmp, err := os.CreateTemp("", "markforest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	pages, err := readPages(tmp.Name())
	if err != nil && p.FallbackPdftotext {
		pages, err = pdftotextPages(tmp.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pagesDocument(trimExt(filename, ".pdf"), pages), nil
}

// pagesDocument joins page texts into one document. Paragraphs are split
// per page so none spans a page break.
func pagesDocument(title string, pages []string) *doctree.Document {
	var b doctree.Builder
	for _, page := range pages {
		for _, span := range ParagraphSpans(page, 0) {
			b.AddParagraph(page[span.Start:span.End])
		}
	}
	return b.Document(title)
}

func readPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func pdftotextPages(path string) ([]string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds.
	return strings.Split(string(out), "\f"), nil
}
