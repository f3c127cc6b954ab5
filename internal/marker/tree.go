package marker

import (
	"regexp"
	"strings"
)

// RootParent is the parent id that marks an intentional top-level node.
const RootParent = "root"

// Record is a parsed tree marker: {id|parentId|label}.
type Record struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Label    string `json:"label"`
	From     int    `json:"from"` // Byte offset of the opening brace
	To       int    `json:"to"`   // Byte offset just past the closing brace

	// Enclosing scope bounds; nil when the scope could not be determined.
	ScopeStart *int `json:"scope_start,omitempty"`
	ScopeEnd   *int `json:"scope_end,omitempty"`
}

// IsRoot reports whether the record declares itself top-level.
func (r Record) IsRoot() bool {
	return r.ParentID == "" || r.ParentID == RootParent
}

// HasScope reports whether both scope bounds are known.
func (r Record) HasScope() bool {
	return r.ScopeStart != nil && r.ScopeEnd != nil
}

// ID and PARENTID exclude braces and pipes; LABEL excludes braces only.
var treePattern = regexp.MustCompile(`^\{([^{}|]+)\|([^{}|]+)(?:\|([^{}]*))?\}$`)

// ParseTree parses one candidate token starting at offset from.
// It returns false when the token does not conform to the tree grammar or
// when the id or parent id is blank after trimming.
func ParseTree(token string, from int) (Record, bool) {
	m := treePattern.FindStringSubmatch(token)
	if m == nil {
		return Record{}, false
	}
	id := strings.TrimSpace(m[1])
	parent := strings.TrimSpace(m[2])
	if id == "" || parent == "" {
		return Record{}, false
	}
	return Record{
		ID:       id,
		ParentID: parent,
		Label:    strings.TrimSpace(m[3]),
		From:     from,
		To:       from + len(token),
	}, true
}
