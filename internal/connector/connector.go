// Package connector associates connector markers into start/end pairs and
// infers a hierarchy among pairs that declare no explicit parent.
package connector

import (
	"sort"

	"github.com/dgallion1/markforest/internal/marker"
)

// ConnectionPoint is where a child connector joins its parent.
type ConnectionPoint string

const (
	PointTop    ConnectionPoint = "top"
	PointMiddle ConnectionPoint = "middle"
	PointBottom ConnectionPoint = "bottom"
)

// End is one endpoint of a connector pair.
type End struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	Track     int    `json:"track"`
	Color     string `json:"color,omitempty"`
	LabelText string `json:"label,omitempty"`
}

// Hierarchy is the inferred position of a pair among its neighbors.
type Hierarchy struct {
	Level           int             `json:"level"` // 0 for roots
	ParentID        string          `json:"parent_id,omitempty"`
	ChildIDs        []string        `json:"child_ids"`
	ConnectionPoint ConnectionPoint `json:"connection_point,omitempty"`
	IsJunction      bool            `json:"is_junction"`
}

// Pair is every marker sharing one identifier: the first is the start,
// later ones are ends.
type Pair struct {
	Identifier string                  `json:"identifier"`
	Label      string                  `json:"label,omitempty"`
	Options    marker.ConnectorOptions `json:"options"`
	Start      *End                    `json:"start,omitempty"`
	Ends       []End                   `json:"ends"`
	Hierarchy  *Hierarchy              `json:"hierarchy,omitempty"`
}

// Resolved reports whether the pair has a start and at least one end.
func (p *Pair) Resolved() bool {
	return p.Start != nil && len(p.Ends) > 0
}

// Resolve groups connector markers by identifier in document order.
// Pairs with no end are returned separately as unresolved identifiers.
func Resolve(markers []marker.Connector) (pairs []*Pair, unresolved []string) {
	sorted := make([]marker.Connector, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	byID := make(map[string]*Pair)
	var order []*Pair
	for _, m := range sorted {
		end := End{
			From:      m.From,
			To:        m.To,
			Track:     m.Options.Track,
			Color:     m.Options.Color,
			LabelText: m.Label,
		}
		p, ok := byID[m.Identifier]
		if !ok {
			p = &Pair{Identifier: m.Identifier, Label: m.Label, Options: m.Options, Start: &end, Ends: []End{}}
			byID[m.Identifier] = p
			order = append(order, p)
			continue
		}
		p.Ends = append(p.Ends, end)
	}

	for _, p := range order {
		if p.Resolved() {
			pairs = append(pairs, p)
		} else {
			unresolved = append(unresolved, p.Identifier)
		}
	}
	return pairs, unresolved
}
