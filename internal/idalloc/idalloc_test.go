package idalloc

import (
	"fmt"
	"testing"
	"time"
)

func TestIncrement(t *testing.T) {
	tests := map[string]string{
		"":    "a",
		"a":   "b",
		"y":   "z",
		"z":   "aa",
		"az":  "ba",
		"zz":  "aaa",
		"abz": "aca",
		"zzz": "aaaa",
	}
	for in, want := range tests {
		if got := Increment(in); got != want {
			t.Errorf("Increment(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSplitSuffix(t *testing.T) {
	tests := []struct {
		seed, base, suffix string
	}{
		{"step1", "step1", ""},
		{"step1ab", "step1", "ab"},
		{"B", "B", ""},
		{"Bx", "B", "x"},
		{"note", "", "note"},
		{"", "", ""},
		{"a-Z", "a-Z", ""},
	}
	for _, tt := range tests {
		base, suffix := SplitSuffix(tt.seed)
		if base != tt.base || suffix != tt.suffix {
			t.Errorf("SplitSuffix(%q): expected (%q,%q), got (%q,%q)", tt.seed, tt.base, tt.suffix, base, suffix)
		}
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		seed  string
		inUse Set
		want  string
	}{
		{"step1", NewSet(), "step1a"},
		{"step1", NewSet("step1a", "step1b"), "step1c"},
		{"step1a", NewSet("step1a"), "step1b"},
		{"Nz", NewSet("Naa"), "Nab"},
		{"", NewSet(), "a"},
		{"A", NewSet("Aa"), "Ab"},
	}
	for _, tt := range tests {
		if got := Next(tt.seed, tt.inUse); got != tt.want {
			t.Errorf("Next(%q): expected %q, got %q", tt.seed, tt.want, got)
		}
	}
}

func TestNext_NeverInUseAndNeverRepeats(t *testing.T) {
	for _, seed := range []string{"", "x", "n1", "Qz", "zz"} {
		inUse := NewSet()
		for i := 0; i < 60; i++ {
			inUse.Add(fmt.Sprintf("%s%c", seed, 'a'+rune(i%26)))
		}
		seen := NewSet()
		for i := 0; i < 200; i++ {
			id := Next(seed, inUse)
			if seen.Has(id) {
				t.Fatalf("seed %q: %q returned twice", seed, id)
			}
			seen.Add(id)
			inUse.Add(id)
		}
	}
}

type fakeDoc struct {
	length int
	ids    []string
	scans  int
}

func (d *fakeDoc) Len() int { return d.length }

func (d *fakeDoc) Identifiers() Set {
	d.scans++
	return NewSet(d.ids...)
}

func TestCache_ReusesScanUntilLengthChanges(t *testing.T) {
	doc := &fakeDoc{length: 10, ids: []string{"a1a"}}
	c := NewCache(0)

	if got := c.Next(doc, "a1"); got != "a1b" {
		t.Fatalf("expected a1b, got %s", got)
	}
	if got := c.Next(doc, "a1"); got != "a1c" {
		t.Fatalf("expected a1c after insert, got %s", got)
	}
	if doc.scans != 1 {
		t.Errorf("expected 1 scan, got %d", doc.scans)
	}

	doc.length = 11
	if got := c.Next(doc, "a1"); got != "a1b" {
		t.Errorf("expected rescan to forget unsaved ids, got %s", got)
	}
	if doc.scans != 2 {
		t.Errorf("expected 2 scans, got %d", doc.scans)
	}
}

func TestCache_TTL(t *testing.T) {
	doc := &fakeDoc{length: 1}
	now := time.Unix(1000, 0)
	c := NewCache(5 * time.Second)
	c.now = func() time.Time { return now }

	c.InUse(doc)
	now = now.Add(4 * time.Second)
	c.InUse(doc)
	if doc.scans != 1 {
		t.Fatalf("expected cached set within ttl, got %d scans", doc.scans)
	}
	now = now.Add(time.Second)
	c.InUse(doc)
	if doc.scans != 2 {
		t.Errorf("expected rescan after ttl, got %d scans", doc.scans)
	}
}

func TestCache_InvalidateAndInsert(t *testing.T) {
	doc := &fakeDoc{length: 1}
	c := NewCache(0)

	c.Insert("early")
	if c.InUse(doc).Has("early") {
		t.Error("insert before the first scan should be dropped")
	}
	c.Insert("x")
	if !c.InUse(doc).Has("x") {
		t.Error("expected inserted id to be visible")
	}
	c.Invalidate()
	if c.InUse(doc).Has("x") {
		t.Error("expected invalidate to discard inserted ids")
	}
	if doc.scans != 2 {
		t.Errorf("expected 2 scans, got %d", doc.scans)
	}
}

type sharedDoc struct{ ids Set }

func (d sharedDoc) Len() int { return 1 }

func (d sharedDoc) Identifiers() Set { return d.ids }

func TestCache_InsertLeavesSnapshotSetAlone(t *testing.T) {
	doc := sharedDoc{ids: NewSet("k1a")}
	c := NewCache(0)

	if got := c.Next(doc, "k1"); got != "k1b" {
		t.Fatalf("expected k1b, got %s", got)
	}
	if !c.InUse(doc).Has("k1b") {
		t.Error("expected allocated id in the cache")
	}
	if doc.ids.Has("k1b") || len(doc.ids) != 1 {
		t.Errorf("expected snapshot set untouched, got %v", doc.ids)
	}
}
