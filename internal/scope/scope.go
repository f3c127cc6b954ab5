// Package scope groups tree markers by the paragraph that encloses them.
package scope

import (
	"sort"

	"github.com/dgallion1/markforest/internal/doctree"
	"github.com/dgallion1/markforest/internal/marker"
)

// Collection is a set of records sharing one textual scope.
type Collection struct {
	Records    []marker.Record `json:"records"`
	ScopeStart *int            `json:"scope_start,omitempty"`
	ScopeEnd   *int            `json:"scope_end,omitempty"`

	// Fallback marks the collection of records whose scope was unknown.
	// Its bounds are the min From and max To of its members.
	Fallback bool `json:"fallback,omitempty"`
}

// Boundary is the enclosing scope of an offset.
type Boundary struct {
	Start int
	End   int
}

// Locator supplies scope boundaries for a document offset.
type Locator interface {
	Boundaries(pos int) (Boundary, bool)
}

// ParagraphIndex locates the paragraph containing an offset.
type ParagraphIndex struct {
	spans []doctree.Span
}

// NewParagraphIndex indexes paragraph spans. Spans are sorted by start.
func NewParagraphIndex(spans []doctree.Span) *ParagraphIndex {
	sorted := make([]doctree.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &ParagraphIndex{spans: sorted}
}

// Boundaries returns the paragraph containing pos.
func (p *ParagraphIndex) Boundaries(pos int) (Boundary, bool) {
	// First span starting after pos; the candidate is the one before it.
	i := sort.Search(len(p.spans), func(i int) bool { return p.spans[i].Start > pos })
	if i == 0 {
		return Boundary{}, false
	}
	s := p.spans[i-1]
	if !s.Contains(pos) {
		return Boundary{}, false
	}
	return Boundary{Start: s.Start, End: s.End}, true
}

// Tag returns copies of records with ScopeStart/ScopeEnd set from loc.
// Records whose offset has no enclosing scope are left untagged.
func Tag(records []marker.Record, loc Locator) []marker.Record {
	out := make([]marker.Record, len(records))
	for i, r := range records {
		out[i] = r
		if loc == nil {
			continue
		}
		if b, ok := loc.Boundaries(r.From); ok {
			start, end := b.Start, b.End
			out[i].ScopeStart = &start
			out[i].ScopeEnd = &end
		}
	}
	return out
}

type key struct {
	start int
	end   int
}

// GroupByScope partitions records by exact (ScopeStart, ScopeEnd).
// Records missing either bound go to a single fallback collection.
// Collections come out in order of first appearance, fallback last;
// callers should not rely on that order.
func GroupByScope(records []marker.Record) []Collection {
	var out []Collection
	index := make(map[key]int)
	var fallback []marker.Record

	for _, r := range records {
		if !r.HasScope() {
			fallback = append(fallback, r)
			continue
		}
		k := key{start: *r.ScopeStart, end: *r.ScopeEnd}
		i, ok := index[k]
		if !ok {
			start, end := k.start, k.end
			out = append(out, Collection{ScopeStart: &start, ScopeEnd: &end})
			i = len(out) - 1
			index[k] = i
		}
		out[i].Records = append(out[i].Records, r)
	}

	if len(fallback) > 0 {
		minFrom, maxTo := fallback[0].From, fallback[0].To
		for _, r := range fallback[1:] {
			minFrom = min(minFrom, r.From)
			maxTo = max(maxTo, r.To)
		}
		out = append(out, Collection{
			Records:    fallback,
			ScopeStart: &minFrom,
			ScopeEnd:   &maxTo,
			Fallback:   true,
		})
	}
	return out
}
