package analysis

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/markforest/internal/connector"
	"github.com/dgallion1/markforest/internal/doctree"
	"github.com/dgallion1/markforest/internal/forest"
	"github.com/dgallion1/markforest/internal/idalloc"
	"github.com/dgallion1/markforest/internal/parser"
)

func newTestAnalyzer() *Analyzer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Options{Connector: connector.DefaultConfig()}, NewStats(time.Hour), logger)
}

func textDoc(text string) *doctree.Document {
	return &doctree.Document{Title: "test", Text: text, Paragraphs: parser.ParagraphSpans(text, 0)}
}

func TestAnalyze_GroupsByParagraph(t *testing.T) {
	text := "First {A|root|X} and {B|A|Y}.\n\nSecond {C|root} with {flow|2} and {flow}.\n\nThird {D|A}."
	res := newTestAnalyzer().Analyze(textDoc(text))

	if len(res.Scopes) != 3 {
		t.Fatalf("expected 3 scopes, got %d", len(res.Scopes))
	}
	first := res.Scopes[0]
	if len(first.Trees) != 1 || first.Trees[0].Root.ID != "A" || len(first.Trees[0].Root.Children) != 1 {
		t.Errorf("expected A with one child in first scope, got %+v", first.Trees)
	}
	if *first.ScopeStart != 0 {
		t.Errorf("expected first scope at 0, got %d", *first.ScopeStart)
	}

	// D's parent lives in another paragraph, so D is an orphan root here.
	third := res.Scopes[2]
	if len(third.Diagnostics) != 1 || third.Diagnostics[0].Kind != forest.DiagOrphan {
		t.Errorf("expected orphan diagnostic in third scope, got %+v", third.Diagnostics)
	}

	s := res.Summary
	if s.TreeMarkers != 4 || s.ConnectorMarkers != 2 {
		t.Errorf("unexpected marker counts %+v", s)
	}
	if s.Trees != 3 || s.Nodes != 4 || s.StandaloneTrees != 2 || s.Diagnostics != 1 {
		t.Errorf("unexpected forest summary %+v", s)
	}
	if s.Pairs != 1 || len(res.Connectors) != 1 || res.Connectors[0].Hierarchy == nil {
		t.Errorf("expected one inferred connector pair, got %+v", res.Connectors)
	}
}

func TestAnalyze_NoParagraphsUsesFallbackScope(t *testing.T) {
	doc := &doctree.Document{Text: "{A|root} {B|A}"}
	res := newTestAnalyzer().Analyze(doc)
	if len(res.Scopes) != 1 || !res.Scopes[0].Fallback {
		t.Fatalf("expected a single fallback scope, got %+v", res.Scopes)
	}
	if *res.Scopes[0].ScopeStart != 0 || *res.Scopes[0].ScopeEnd != len(doc.Text) {
		t.Errorf("expected fallback bounds 0-%d, got %d-%d", len(doc.Text), *res.Scopes[0].ScopeStart, *res.Scopes[0].ScopeEnd)
	}
}

func TestAnalyze_UnresolvedConnectors(t *testing.T) {
	res := newTestAnalyzer().Analyze(textDoc("{lonely|3} text only"))
	if len(res.Connectors) != 0 {
		t.Errorf("expected no pairs, got %d", len(res.Connectors))
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "lonely" {
		t.Errorf("expected lonely unresolved, got %v", res.Unresolved)
	}
}

func TestAnalyze_EmptyDocument(t *testing.T) {
	res := newTestAnalyzer().Analyze(textDoc(""))
	if len(res.Scopes) != 0 || len(res.Connectors) != 0 || res.Summary.Trees != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestAnalyze_RecordsStats(t *testing.T) {
	a := newTestAnalyzer()
	a.WithSource("test").Analyze(textDoc("{A|root} {B|A}"))
	a.Analyze(textDoc("{C|root}"))
	snap := a.Stats().Snapshot()
	if snap.Count != 2 {
		t.Errorf("expected 2 samples, got %d", snap.Count)
	}
	if snap.Nodes != 3 {
		t.Errorf("expected 3 nodes recorded, got %d", snap.Nodes)
	}
}

func TestTextSnapshot_FeedsAllocator(t *testing.T) {
	text := TextSnapshot("{N1a|root} {N1b|N1a} {N1c}")
	if text.Len() != len(text) {
		t.Errorf("unexpected length %d", text.Len())
	}
	if got := idalloc.Next("N1", text.Identifiers()); got != "N1d" {
		t.Errorf("expected N1d, got %s", got)
	}
}
