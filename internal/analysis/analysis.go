// Package analysis runs the full marker pipeline over one parsed document:
// tree markers are tagged with their paragraph, grouped by scope and built
// into forests; connector markers are paired and given an inferred hierarchy.
package analysis

import (
	"log/slog"
	"sort"
	"time"

	"github.com/dgallion1/markforest/internal/connector"
	"github.com/dgallion1/markforest/internal/doctree"
	"github.com/dgallion1/markforest/internal/forest"
	"github.com/dgallion1/markforest/internal/idalloc"
	"github.com/dgallion1/markforest/internal/marker"
	"github.com/dgallion1/markforest/internal/metrics"
	"github.com/dgallion1/markforest/internal/scope"
)

// ScopeResult is the forest built for one paragraph scope.
type ScopeResult struct {
	ScopeStart  *int                `json:"scope_start,omitempty"`
	ScopeEnd    *int                `json:"scope_end,omitempty"`
	Fallback    bool                `json:"fallback,omitempty"`
	Trees       []forest.TreeData   `json:"trees"`
	Diagnostics []forest.Diagnostic `json:"diagnostics,omitempty"`
}

// Summary counts what one analysis found.
type Summary struct {
	TreeMarkers      int     `json:"tree_markers"`
	ConnectorMarkers int     `json:"connector_markers"`
	Scopes           int     `json:"scopes"`
	Trees            int     `json:"trees"`
	Nodes            int     `json:"nodes"`
	StandaloneTrees  int     `json:"standalone_trees"`
	Diagnostics      int     `json:"diagnostics"`
	Pairs            int     `json:"pairs"`
	Junctions        int     `json:"junctions"`
	DurationMs       float64 `json:"duration_ms"`
}

// Result is the outcome of analysing one document.
type Result struct {
	Title      string            `json:"title"`
	Scopes     []ScopeResult     `json:"scopes"`
	Connectors []*connector.Pair `json:"connectors"`
	Unresolved []string          `json:"unresolved_connectors,omitempty"`
	Repaired   int               `json:"repaired_links"`
	Summary    Summary           `json:"summary"`
}

// Options configures an Analyzer.
type Options struct {
	Connector connector.Config
}

// Analyzer is safe for concurrent use; every call works on its own input.
type Analyzer struct {
	opts   Options
	source string
	stats  *Stats
	logger *slog.Logger
}

// New returns an Analyzer. stats may be nil.
func New(opts Options, stats *Stats, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts, source: "api", stats: stats, logger: logger}
}

// WithSource returns a copy that labels its metrics with source.
func (a *Analyzer) WithSource(source string) *Analyzer {
	cp := *a
	cp.source = source
	return &cp
}

// Stats returns the latency tracker, or nil.
func (a *Analyzer) Stats() *Stats {
	return a.stats
}

// Analyze builds the forests and connector hierarchy of doc.
func (a *Analyzer) Analyze(doc *doctree.Document) *Result {
	started := time.Now()
	logger := a.logger.With("doc", doc.Title)

	trees, conns := marker.Scan(doc.Text)
	res := &Result{Title: doc.Title, Scopes: []ScopeResult{}, Connectors: []*connector.Pair{}}

	tagged := scope.Tag(trees, scope.NewParagraphIndex(doc.Paragraphs))
	var kinds []string
	for _, c := range scope.GroupByScope(tagged) {
		rep := forest.BuildReport(c)
		for _, d := range rep.Diagnostics {
			logger.Debug("forest diagnostic", "kind", d.Kind, "id", d.ID, "parent", d.ParentID, "position", d.Position)
			kinds = append(kinds, string(d.Kind))
		}
		res.Scopes = append(res.Scopes, ScopeResult{
			ScopeStart:  c.ScopeStart,
			ScopeEnd:    c.ScopeEnd,
			Fallback:    c.Fallback,
			Trees:       rep.Trees,
			Diagnostics: rep.Diagnostics,
		})
	}
	sort.SliceStable(res.Scopes, func(i, j int) bool {
		si, sj := res.Scopes[i], res.Scopes[j]
		if si.Fallback != sj.Fallback {
			return sj.Fallback
		}
		return *si.ScopeStart < *sj.ScopeStart
	})

	pairs, unresolved := connector.Resolve(conns)
	if len(pairs) > 0 {
		inf := connector.InferReport(pairs, a.opts.Connector)
		res.Connectors = inf.Pairs
		res.Repaired = inf.Repaired
		if inf.Repaired > 0 {
			logger.Debug("connector cycles repaired", "severed", inf.Repaired)
		}
	}
	res.Unresolved = unresolved

	elapsed := time.Since(started)
	res.Summary = summarize(res, len(trees), len(conns))
	res.Summary.DurationMs = float64(elapsed.Microseconds()) / 1000

	metrics.RecordAnalysis(a.source, true, elapsed.Seconds())
	metrics.RecordForest(res.Summary.Trees, kinds)
	metrics.RecordConnectors(len(pairs), len(unresolved), res.Repaired)
	if a.stats != nil {
		a.stats.Record(elapsed, res.Summary.Nodes)
	}

	logger.Debug("analysis complete",
		"trees", res.Summary.Trees,
		"nodes", res.Summary.Nodes,
		"pairs", res.Summary.Pairs,
		"diagnostics", res.Summary.Diagnostics,
	)
	return res
}

func summarize(res *Result, treeMarkers, connMarkers int) Summary {
	s := Summary{
		TreeMarkers:      treeMarkers,
		ConnectorMarkers: connMarkers,
		Scopes:           len(res.Scopes),
		Pairs:            len(res.Connectors),
	}
	for _, sc := range res.Scopes {
		s.Trees += len(sc.Trees)
		s.Diagnostics += len(sc.Diagnostics)
		for _, t := range sc.Trees {
			s.Nodes += forest.CountNodes(t)
			if t.IsStandaloneTree {
				s.StandaloneTrees++
			}
		}
	}
	for _, p := range res.Connectors {
		if p.Hierarchy != nil && p.Hierarchy.IsJunction {
			s.Junctions++
		}
	}
	return s
}

// TextSnapshot adapts raw document text for identifier allocation.
type TextSnapshot string

func (t TextSnapshot) Len() int { return len(t) }

// Identifiers scans the text for every identifier in use.
func (t TextSnapshot) Identifiers() idalloc.Set {
	trees, conns := marker.Scan(string(t))
	return idalloc.Set(marker.Identifiers(trees, conns))
}
