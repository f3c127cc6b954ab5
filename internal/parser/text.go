package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/markforest/internal/doctree"
)

// TextParser handles plain text files. Paragraphs are runs of non-blank
// lines; offsets refer to the original bytes.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(src)

	return &doctree.Document{
		Title:      trimExt(filename, ".txt"),
		Text:       text,
		Paragraphs: ParagraphSpans(text, 0),
	}, nil
}

// ParagraphSpans splits text on blank lines and returns the span of each
// paragraph, shifted by base. Trailing newlines are not part of a span.
func ParagraphSpans(text string, base int) []doctree.Span {
	var spans []doctree.Span
	start := -1
	end := 0
	offset := 0

	for _, line := range strings.SplitAfter(text, "\n") {
		body := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(body) == "" {
			if start >= 0 {
				spans = append(spans, doctree.Span{Start: base + start, End: base + end})
				start = -1
			}
		} else {
			if start < 0 {
				start = offset
			}
			end = offset + len(body)
		}
		offset += len(line)
	}
	if start >= 0 {
		spans = append(spans, doctree.Span{Start: base + start, End: base + end})
	}
	return spans
}
