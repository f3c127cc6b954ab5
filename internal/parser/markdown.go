package parser

import (
	"io"

	"github.com/dgallion1/markforest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. The source is kept
// verbatim so marker offsets match the file; every leaf block (paragraph,
// heading, list item text, code block) becomes one paragraph span.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	var spans []doctree.Span
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		span, ok := blockSpan(lines, src)
		if ok {
			spans = append(spans, span)
		}
		// Leaf block: inline children never carry their own lines.
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	return &doctree.Document{
		Title:      trimExt(filename, ".md", ".markdown"),
		Text:       string(src),
		Paragraphs: spans,
	}, nil
}

// blockSpan covers a block's first to last source line, without the
// trailing line break.
func blockSpan(lines *text.Segments, src []byte) (doctree.Span, bool) {
	start := lines.At(0).Start
	end := lines.At(lines.Len() - 1).Stop
	for end > start {
		c := src[end-1]
		if c != '\n' && c != '\r' && c != ' ' && c != '\t' {
			break
		}
		end--
	}
	if end <= start {
		return doctree.Span{}, false
	}
	return doctree.Span{Start: start, End: end}, true
}
