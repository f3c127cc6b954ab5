package doctree

import "strings"

// Document is the flattened text of a parsed file.
type Document struct {
	Title      string // Document title (from metadata or filename)
	Text       string // Text markers are scanned from
	Paragraphs []Span // Paragraph bounds in Text, ascending and non-overlapping
}

// Span is a half-open byte range [Start, End) in Document.Text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.End
}

// Builder assembles a Document from paragraphs extracted one at a time.
// Paragraphs are joined with a blank line.
type Builder struct {
	buf   strings.Builder
	spans []Span
}

// AddParagraph appends one paragraph. Blank paragraphs are ignored.
func (b *Builder) AddParagraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.buf.Len() > 0 {
		b.buf.WriteString("\n\n")
	}
	start := b.buf.Len()
	b.buf.WriteString(text)
	b.spans = append(b.spans, Span{Start: start, End: b.buf.Len()})
}

// Len returns the number of paragraphs added so far.
func (b *Builder) Len() int {
	return len(b.spans)
}

// Document returns the assembled document.
func (b *Builder) Document(title string) *Document {
	return &Document{
		Title:      title,
		Text:       b.buf.String(),
		Paragraphs: b.spans,
	}
}
