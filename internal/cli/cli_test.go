package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/markforest/internal/analysis"
)

const sample = "Intro {A|root|Top} and {B|A}.\n\nConnect {flow|2} here and {flow} there.\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MARKFOREST_OUTPUT", "")
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyze_JSON(t *testing.T) {
	path := writeFile(t, "notes.txt", sample)
	out, err := run(t, "analyze", "-o", "json", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var res analysis.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, out)
	}
	if res.Title != "notes" {
		t.Errorf("expected title notes, got %q", res.Title)
	}
	if res.Summary.Trees != 1 || res.Summary.Nodes != 2 || res.Summary.Pairs != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestAnalyze_DefaultsToJSONWhenPiped(t *testing.T) {
	path := writeFile(t, "notes.txt", sample)
	out, err := run(t, "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Errorf("expected json when stdout is not a terminal, got %q", out)
	}
}

func TestAnalyze_Query(t *testing.T) {
	path := writeFile(t, "notes.txt", sample)
	out, err := run(t, "analyze", "--query", ".summary.trees", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("expected 1, got %q", out)
	}

	out, err = run(t, "analyze", "--query", ".connectors[].identifier", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.TrimSpace(out) != `"flow"` {
		t.Errorf("expected \"flow\", got %q", out)
	}
}

func TestAnalyze_QueryErrors(t *testing.T) {
	path := writeFile(t, "notes.txt", sample)
	if _, err := run(t, "analyze", "-o", "text", "--query", ".summary", path); err == nil {
		t.Error("expected error for --query with text output")
	}
	if _, err := run(t, "analyze", "--query", ".summary[", path); err == nil {
		t.Error("expected error for invalid query")
	}
}

func TestAnalyze_YAML(t *testing.T) {
	path := writeFile(t, "notes.txt", sample)
	out, err := run(t, "analyze", "-o", "yaml", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"title: notes", "tree_markers: 2", "identifier: flow"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in yaml output:\n%s", want, out)
		}
	}
}

func TestAnalyze_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", sample+"\n{C|ghost}\n")
	out, err := run(t, "analyze", "-o", "text", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{
		"2 trees, 3 nodes, 1 connector pairs, 1 diagnostics",
		`A "Top"`,
		"      B",
		"! orphan C (parent ghost)",
		"connectors",
		"flow, 1 ends",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in text output:\n%s", want, out)
		}
	}
}

func TestAnalyze_MultipleFiles(t *testing.T) {
	first := writeFile(t, "one.txt", sample)
	second := writeFile(t, "two.txt", "{X|root}")
	out, err := run(t, "analyze", "-o", "json", first, second)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var results []FileResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(results) != 2 || results[0].File != first || results[1].File != second {
		t.Fatalf("expected results in argument order, got %+v", results)
	}
	if results[1].Result.Summary.Trees != 1 {
		t.Errorf("expected one tree in second file, got %+v", results[1].Result.Summary)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	if _, err := run(t, "analyze", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := run(t, "analyze", writeFile(t, "data.bin", "x")); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := run(t, "analyze", "-o", "xml", writeFile(t, "a.txt", "x")); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestAnalyze_ConfigFile(t *testing.T) {
	cfg := writeFile(t, "markforest.yaml", "output: yaml\n")
	path := writeFile(t, "notes.txt", sample)
	out, err := run(t, "analyze", "--config", cfg, path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "title: notes") {
		t.Errorf("expected yaml output from config file, got %q", out)
	}
}

func TestNextID(t *testing.T) {
	path := writeFile(t, "doc.txt", "{N1a|root} {N1b|N1a}")
	out, err := run(t, "next-id", "--seed", "N1", "-n", "2", "-o", "json", path)
	if err != nil {
		t.Fatalf("next-id: %v", err)
	}

	var got struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(got.IDs) != 2 || got.IDs[0] != "N1c" || got.IDs[1] != "N1d" {
		t.Errorf("expected [N1c N1d], got %v", got.IDs)
	}

	out, err = run(t, "next-id", "--seed", "N1", "-o", "text", path)
	if err != nil {
		t.Fatalf("next-id: %v", err)
	}
	if out != "N1c\n" {
		t.Errorf("expected N1c, got %q", out)
	}

	if _, err := run(t, "next-id", "--seed", "N1", "-n", "0", path); err == nil {
		t.Error("expected error for zero count")
	}
}
