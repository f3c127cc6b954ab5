package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/connector"
	"github.com/dgallion1/markforest/internal/forest"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Printer writes command output in one format. Structured formats go
// through a JSON round trip so json and yaml share field names.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	query  string
}

func NewPrinter(w io.Writer, format Format, query string) *Printer {
	return &Printer{w: w, format: format, query: query}
}

// PrintResult prints one file's analysis.
func (p *Printer) PrintResult(file string, res *analysis.Result) error {
	if p.format == FormatText {
		p.mu.Lock()
		defer p.mu.Unlock()
		return renderResult(p.w, file, res)
	}
	return p.print(res)
}

// PrintResults prints the analyses of several files.
func (p *Printer) PrintResults(results []FileResult) error {
	if p.format == FormatText {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(p.w)
			}
			if err := renderResult(p.w, r.File, r.Result); err != nil {
				return err
			}
		}
		return nil
	}
	return p.print(results)
}

// PrintIDs prints allocated identifiers.
func (p *Printer) PrintIDs(ids []string) error {
	if p.format == FormatText {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, err := fmt.Fprintln(p.w, strings.Join(ids, "\n"))
		return err
	}
	return p.print(map[string]any{"ids": ids})
}

func (p *Printer) print(v any) error {
	data, err := toGeneric(v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		if p.query != "" {
			return p.runQuery(data)
		}
		enc := json.NewEncoder(p.w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return fmt.Errorf("unsupported format: %s", p.format)
}

func (p *Printer) runQuery(data any) error {
	parsed, err := gojq.Parse(p.query)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	iter := code.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("query error: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}

// toGeneric converts v to the map/slice form gojq and yaml expect.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func renderResult(w io.Writer, file string, res *analysis.Result) error {
	s := res.Summary
	fmt.Fprintf(w, "%s: %d trees, %d nodes, %d connector pairs, %d diagnostics\n",
		file, s.Trees, s.Nodes, s.Pairs, s.Diagnostics)

	for _, sc := range res.Scopes {
		if sc.Fallback {
			fmt.Fprintf(w, "  scope %d-%d (unscoped)\n", *sc.ScopeStart, *sc.ScopeEnd)
		} else {
			fmt.Fprintf(w, "  scope %d-%d\n", *sc.ScopeStart, *sc.ScopeEnd)
		}
		for _, t := range sc.Trees {
			forest.Walk(t.Root, func(n *forest.TreeNode, depth int) bool {
				fmt.Fprintf(w, "    %s%s\n", strings.Repeat("  ", depth), describeNode(n))
				return true
			})
		}
		for _, d := range sc.Diagnostics {
			fmt.Fprintf(w, "    ! %s %s", d.Kind, d.ID)
			if d.ParentID != "" {
				fmt.Fprintf(w, " (parent %s)", d.ParentID)
			}
			fmt.Fprintln(w)
		}
	}

	if len(res.Connectors) > 0 {
		fmt.Fprintln(w, "  connectors")
		for _, p := range res.Connectors {
			level := 0
			if p.Hierarchy != nil {
				level = p.Hierarchy.Level
			}
			fmt.Fprintf(w, "    %s%s\n", strings.Repeat("  ", level), describePair(p))
		}
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(w, "  unresolved: %s\n", strings.Join(res.Unresolved, ", "))
	}
	return nil
}

func describeNode(n *forest.TreeNode) string {
	var b strings.Builder
	b.WriteString(n.ID)
	if n.Label != "" {
		fmt.Fprintf(&b, " %q", n.Label)
	}
	if n.IsStandalone {
		b.WriteString(" (standalone)")
	}
	return b.String()
}

func describePair(p *connector.Pair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %d ends", p.Identifier, len(p.Ends))
	if p.Start != nil {
		fmt.Fprintf(&b, ", track %d", p.Start.Track)
	}
	h := p.Hierarchy
	if h == nil {
		return b.String()
	}
	if h.ParentID != "" {
		fmt.Fprintf(&b, ", joins %s at %s", h.ParentID, h.ConnectionPoint)
	}
	if h.IsJunction {
		fmt.Fprintf(&b, ", junction of %s", strings.Join(h.ChildIDs, " "))
	}
	return b.String()
}
