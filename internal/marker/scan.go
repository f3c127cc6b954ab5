package marker

import "regexp"

var tokenPattern = regexp.MustCompile(`\{[^{}]*\}`)

// Scan extracts every marker from text, in document order.
//
// A token matching the tree grammar is a tree marker when its parent is
// the root keyword or the id of another tree-shaped token in text. Failing
// that, a token is a connector marker when it has no pipe, carries an
// "identifier:label" head, or all of its options are recognized connector
// options. Remaining tree-shaped tokens are tree markers. Tokens matching
// neither grammar are skipped.
func Scan(text string) ([]Record, []Connector) {
	locs := tokenPattern.FindAllStringIndex(text, -1)

	treeIDs := make(map[string]bool)
	for _, loc := range locs {
		if r, ok := ParseTree(text[loc[0]:loc[1]], loc[0]); ok {
			treeIDs[r.ID] = true
		}
	}

	var trees []Record
	var conns []Connector
	for _, loc := range locs {
		token := text[loc[0]:loc[1]]

		r, isTree := ParseTree(token, loc[0])
		if isTree && (r.IsRoot() || treeIDs[r.ParentID]) {
			trees = append(trees, r)
			continue
		}
		c, isConn := ParseConnector(token, loc[0])
		if isConn && c.explicit {
			conns = append(conns, c)
			continue
		}
		if isTree {
			trees = append(trees, r)
			continue
		}
		if isConn {
			conns = append(conns, c)
		}
	}
	return trees, conns
}

// Identifiers collects every identifier a document already uses: tree ids,
// tree parent references other than the root keyword, and connector
// identifiers.
func Identifiers(trees []Record, conns []Connector) map[string]struct{} {
	ids := make(map[string]struct{}, len(trees)*2+len(conns))
	for _, r := range trees {
		ids[r.ID] = struct{}{}
		if !r.IsRoot() {
			ids[r.ParentID] = struct{}{}
		}
	}
	for _, c := range conns {
		ids[c.Identifier] = struct{}{}
	}
	return ids
}
