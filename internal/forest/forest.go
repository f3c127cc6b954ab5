// Package forest builds validated trees from the tree markers of one scope.
//
// Building never fails. Inconsistent input (unknown parents, self-parents,
// cycles, duplicate ids) always resolves to some valid forest: the node that
// cannot be attached becomes an extra root and a Diagnostic records why.
package forest

import (
	"sort"

	"github.com/dgallion1/markforest/internal/marker"
	"github.com/dgallion1/markforest/internal/scope"
)

// TreeNode is one marker in a built tree. Each node is owned by exactly one
// parent or is the root of a TreeData.
type TreeNode struct {
	ID           string      `json:"id"`
	ParentID     string      `json:"parent_id,omitempty"` // As declared; empty for root markers
	Label        string      `json:"label,omitempty"`
	Children     []*TreeNode `json:"children,omitempty"`
	Position     int         `json:"position"`
	IsStandalone bool        `json:"is_standalone"`
}

// TreeData is one tree of a scope's forest.
type TreeData struct {
	Root             *TreeNode `json:"root"`
	Position         int       `json:"position"`
	ScopeStart       *int      `json:"scope_start,omitempty"`
	ScopeEnd         *int      `json:"scope_end,omitempty"`
	IsStandaloneTree bool      `json:"is_standalone_tree"`
}

// DiagnosticKind classifies why a node was not attached as declared.
type DiagnosticKind string

const (
	DiagSelfParent DiagnosticKind = "self_parent"
	DiagCycle      DiagnosticKind = "cycle"
	DiagOrphan     DiagnosticKind = "orphan"
	DiagDuplicate  DiagnosticKind = "duplicate_id"
	DiagDeepCycle  DiagnosticKind = "deep_cycle"
)

// Diagnostic records one anomaly found while building.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id,omitempty"`
	Position int            `json:"position"`
}

// Report is the full outcome of building one scope.
type Report struct {
	Trees       []TreeData   `json:"trees"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Build returns the ordered forest for one scope collection.
func Build(c scope.Collection) []TreeData {
	return BuildReport(c).Trees
}

// BuildReport builds the forest and reports every anomaly it resolved.
func BuildReport(c scope.Collection) Report {
	var rep Report
	if len(c.Records) == 0 {
		return rep
	}

	records := make([]marker.Record, len(c.Records))
	copy(records, c.Records)
	// Document order is the only source of determinism below.
	sort.SliceStable(records, func(i, j int) bool { return records[i].From < records[j].From })

	nodes := make([]*TreeNode, len(records))
	index := make(map[string]*TreeNode, len(records))
	for i, r := range records {
		n := &TreeNode{ID: r.ID, Label: r.Label, Position: r.From}
		if !r.IsRoot() {
			n.ParentID = r.ParentID
		}
		nodes[i] = n
		if _, dup := index[r.ID]; dup {
			rep.Diagnostics = append(rep.Diagnostics, Diagnostic{Kind: DiagDuplicate, ID: r.ID, Position: r.From})
		}
		// Later duplicates replace earlier ones as attachment targets.
		index[r.ID] = n
	}

	parentOf := make(map[*TreeNode]*TreeNode, len(records))
	hasChildren := make(map[*TreeNode]bool)
	var roots []*TreeNode

	for i, r := range records {
		child := nodes[i]
		if r.IsRoot() {
			roots = append(roots, child)
			continue
		}

		diag := Diagnostic{ID: r.ID, ParentID: r.ParentID, Position: r.From}
		parent, ok := index[r.ParentID]
		switch {
		case r.ID == r.ParentID:
			diag.Kind = DiagSelfParent
		case !ok:
			diag.Kind = DiagOrphan
		case closesLoop(child, parent, parentOf):
			diag.Kind = DiagCycle
		default:
			parent.Children = append(parent.Children, child)
			parentOf[child] = parent
			hasChildren[parent] = true
			continue
		}
		rep.Diagnostics = append(rep.Diagnostics, diag)
		roots = append(roots, child)
	}

	for _, n := range nodes {
		_, hasParent := parentOf[n]
		n.IsStandalone = !hasParent && !hasChildren[n]
	}

	sort.SliceStable(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if a.IsStandalone != b.IsStandalone {
			return !a.IsStandalone
		}
		return a.Position < b.Position
	})

	visited := make(map[*TreeNode]bool, len(nodes))
	for _, root := range roots {
		for _, id := range sortChildren(root, visited) {
			rep.Diagnostics = append(rep.Diagnostics, Diagnostic{Kind: DiagDeepCycle, ID: id})
		}
		rep.Trees = append(rep.Trees, TreeData{
			Root:             root,
			Position:         root.Position,
			ScopeStart:       c.ScopeStart,
			ScopeEnd:         c.ScopeEnd,
			IsStandaloneTree: root.IsStandalone,
		})
	}
	return rep
}

// closesLoop reports whether attaching child under parent would create a
// cycle, i.e. child already appears on parent's chain up to its root.
func closesLoop(child, parent *TreeNode, parentOf map[*TreeNode]*TreeNode) bool {
	for cur, steps := parent, 0; cur != nil && steps <= len(parentOf); steps++ {
		if cur == child {
			return true
		}
		cur = parentOf[cur]
	}
	return false
}

// sortChildren orders every child list under root by position, depth first
// with an explicit stack. A node reached twice is not descended into again;
// its id is returned so the caller can report it.
func sortChildren(root *TreeNode, visited map[*TreeNode]bool) []string {
	var revisited []string
	stack := []*TreeNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			revisited = append(revisited, n.ID)
			continue
		}
		visited[n] = true
		sort.SliceStable(n.Children, func(i, j int) bool { return n.Children[i].Position < n.Children[j].Position })
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return revisited
}

// CountNodes returns the number of nodes in a tree.
func CountNodes(t TreeData) int {
	count := 0
	Walk(t.Root, func(*TreeNode, int) bool {
		count++
		return true
	})
	return count
}

// Walk visits n and its descendants in document order, passing each node's
// depth below n. Returning false from fn skips that node's children.
func Walk(n *TreeNode, fn func(node *TreeNode, depth int) bool) {
	if n == nil {
		return
	}
	type frame struct {
		node  *TreeNode
		depth int
	}
	seen := make(map[*TreeNode]bool)
	stack := []frame{{node: n}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[f.node] {
			continue
		}
		seen[f.node] = true
		if !fn(f.node, f.depth) {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
}
