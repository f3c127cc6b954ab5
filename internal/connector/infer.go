package connector

import "sort"

// Config holds the alignment thresholds used to infer parents. The values
// are hand-tuned; distances are in document offset units.
type Config struct {
	BucketWidth        int // Tracks are bucketed by floor(track/width)*width
	SameTrackDistance  int // Max start distance within one bucket
	CrossTrackDistance int // Max start distance across nearby buckets
	MaxBucketDiff      int // Buckets further apart than this never align
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		BucketWidth:        5,
		SameTrackDistance:  1000,
		CrossTrackDistance: 500,
		MaxBucketDiff:      3,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.BucketWidth <= 0 {
		c.BucketWidth = d.BucketWidth
	}
	if c.SameTrackDistance <= 0 {
		c.SameTrackDistance = d.SameTrackDistance
	}
	if c.CrossTrackDistance <= 0 {
		c.CrossTrackDistance = d.CrossTrackDistance
	}
	if c.MaxBucketDiff < 0 {
		c.MaxBucketDiff = d.MaxBucketDiff
	}
	return c
}

// Report is the outcome of one inference run.
type Report struct {
	Pairs    []*Pair `json:"pairs"`
	Repaired int     `json:"repaired"` // Parent links severed by cycle repair
}

// Infer populates Hierarchy on every pair and returns the same slice.
func Infer(pairs []*Pair, cfg Config) []*Pair {
	return InferReport(pairs, cfg).Pairs
}

// InferReport runs track grouping, the cross-track pass and cycle repair.
// Pairs that are not resolved keep a root hierarchy and take no part.
func InferReport(pairs []*Pair, cfg Config) Report {
	inf := &inferrer{
		pairs:  pairs,
		cfg:    cfg.normalized(),
		parent: make([]int, len(pairs)),
	}
	for i, p := range pairs {
		p.Hierarchy = &Hierarchy{ChildIDs: []string{}}
		inf.parent[i] = -1
	}

	inf.groupByTrack()
	inf.crossTrack()

	repaired := Repair(pairs)
	normalizeLevels(pairs)
	return Report{Pairs: pairs, Repaired: repaired}
}

type inferrer struct {
	pairs  []*Pair
	cfg    Config
	parent []int
}

func (inf *inferrer) bucket(i int) int {
	return floorDiv(inf.pairs[i].Start.Track, inf.cfg.BucketWidth) * inf.cfg.BucketWidth
}

func (inf *inferrer) start(i int) int {
	return inf.pairs[i].Start.From
}

// groupByTrack makes the topmost member of every shared bucket the parent
// of the other members.
func (inf *inferrer) groupByTrack() {
	buckets := make(map[int][]int)
	for i, p := range inf.pairs {
		if p.Resolved() {
			b := inf.bucket(i)
			buckets[b] = append(buckets[b], i)
		}
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for _, k := range keys {
		members := buckets[k]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(a, b int) bool { return inf.start(members[a]) < inf.start(members[b]) })
		root := members[0]
		inf.pairs[root].Hierarchy.IsJunction = true
		for _, child := range members[1:] {
			inf.attach(child, root)
		}
	}
}

// crossTrack attaches every remaining root to the first aligned connector
// in index order that would not close a loop.
func (inf *inferrer) crossTrack() {
	for i, p := range inf.pairs {
		if !p.Resolved() || inf.parent[i] >= 0 {
			continue
		}
		for j, cand := range inf.pairs {
			if j == i || !cand.Resolved() || inf.inSubtree(j, i) || !inf.aligned(i, j) {
				continue
			}
			inf.attach(i, j)
			if len(cand.Hierarchy.ChildIDs) > 1 {
				cand.Hierarchy.IsJunction = true
			}
			break
		}
	}
}

// aligned applies the distance thresholds between the starts of a and b.
func (inf *inferrer) aligned(a, b int) bool {
	dist := abs(inf.start(a) - inf.start(b))
	ba, bb := inf.bucket(a), inf.bucket(b)
	if ba == bb {
		return dist < inf.cfg.SameTrackDistance
	}
	if abs(ba-bb)/inf.cfg.BucketWidth <= inf.cfg.MaxBucketDiff {
		return dist < inf.cfg.CrossTrackDistance
	}
	return false
}

// inSubtree reports whether j hangs somewhere below i.
func (inf *inferrer) inSubtree(j, i int) bool {
	for cur, steps := j, 0; cur >= 0 && steps <= len(inf.parent); steps++ {
		if cur == i {
			return true
		}
		cur = inf.parent[cur]
	}
	return false
}

func (inf *inferrer) attach(child, parent int) {
	c, p := inf.pairs[child], inf.pairs[parent]
	c.Hierarchy.ParentID = p.Identifier
	c.Hierarchy.Level = p.Hierarchy.Level + 1
	c.Hierarchy.ConnectionPoint = ConnectionPointFor(p, c)
	p.Hierarchy.ChildIDs = append(p.Hierarchy.ChildIDs, c.Identifier)
	inf.parent[child] = parent
}

// ConnectionPointFor classifies where child joins parent from the position
// of child's start relative to parent's ends.
func ConnectionPointFor(parent, child *Pair) ConnectionPoint {
	if child.Start == nil || len(parent.Ends) == 0 {
		return PointMiddle
	}
	pos := child.Start.From

	ends := make([]End, len(parent.Ends))
	copy(ends, parent.Ends)
	sort.SliceStable(ends, func(i, j int) bool { return ends[i].From < ends[j].From })

	switch len(ends) {
	case 1:
		if parent.Start == nil {
			return PointMiddle
		}
		return byThirds(parent.Start.From, ends[0].From, pos)
	case 2:
		return byThirds(ends[0].From, ends[1].From, pos)
	}

	nearest := 0
	for i := range ends {
		if abs(ends[i].From-pos) < abs(ends[nearest].From-pos) {
			nearest = i
		}
	}
	switch nearest {
	case 0:
		return PointTop
	case len(ends) - 1:
		return PointBottom
	}
	return PointMiddle
}

func byThirds(lo, hi, pos int) ConnectionPoint {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo
	if span == 0 {
		return PointMiddle
	}
	t := float64(pos-lo) / float64(span)
	switch {
	case t < 1.0/3:
		return PointTop
	case t > 2.0/3:
		return PointBottom
	}
	return PointMiddle
}

// Repair severs parent links that close a cycle or name a missing parent,
// then makes every ChildIDs list agree with the ParentID links. It returns
// the number of links severed.
func Repair(pairs []*Pair) int {
	index := make(map[string]int, len(pairs))
	for i, p := range pairs {
		if p.Hierarchy == nil {
			p.Hierarchy = &Hierarchy{ChildIDs: []string{}}
		}
		index[p.Identifier] = i
	}

	repaired := 0
	parentOf := func(i int) int {
		id := pairs[i].Hierarchy.ParentID
		if id == "" {
			return -1
		}
		p, ok := index[id]
		if !ok || p == i {
			sever(pairs[i])
			repaired++
			return -1
		}
		return p
	}

	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]uint8, len(pairs))
	for i := range pairs {
		if state[i] != unvisited {
			continue
		}
		var path []int
		for cur := i; ; {
			state[cur] = onPath
			path = append(path, cur)
			p := parentOf(cur)
			if p < 0 || state[p] == done {
				break
			}
			if state[p] == onPath {
				sever(pairs[cur])
				repaired++
				break
			}
			cur = p
		}
		for _, n := range path {
			state[n] = done
		}
	}

	reconcileChildren(pairs, index)
	return repaired
}

func sever(p *Pair) {
	p.Hierarchy.ParentID = ""
	p.Hierarchy.Level = 0
	p.Hierarchy.ConnectionPoint = ""
}

// reconcileChildren drops ChildIDs entries that no longer point back and
// appends children missing from their parent's list, in index order.
// A pair that lost children stays a junction only while it has two or more.
func reconcileChildren(pairs []*Pair, index map[string]int) {
	for _, p := range pairs {
		h := p.Hierarchy
		before := len(h.ChildIDs)
		kept := h.ChildIDs[:0]
		seen := make(map[string]bool, len(h.ChildIDs))
		for _, id := range h.ChildIDs {
			ci, ok := index[id]
			if ok && !seen[id] && pairs[ci].Hierarchy.ParentID == p.Identifier {
				kept = append(kept, id)
				seen[id] = true
			}
		}
		h.ChildIDs = kept
		if len(kept) < before && len(kept) < 2 {
			h.IsJunction = false
		}
	}
	for _, c := range pairs {
		pid := c.Hierarchy.ParentID
		if pid == "" {
			continue
		}
		parent := pairs[index[pid]].Hierarchy
		if !containsString(parent.ChildIDs, c.Identifier) {
			parent.ChildIDs = append(parent.ChildIDs, c.Identifier)
		}
	}
}

// normalizeLevels sets every level to its depth along the parent chain.
// The parent graph must already be acyclic.
func normalizeLevels(pairs []*Pair) {
	index := make(map[string]int, len(pairs))
	for i, p := range pairs {
		index[p.Identifier] = i
	}
	level := make([]int, len(pairs))
	known := make([]bool, len(pairs))
	for i := range pairs {
		var path []int
		cur := i
		for !known[cur] {
			pid := pairs[cur].Hierarchy.ParentID
			if pid == "" {
				level[cur] = 0
				known[cur] = true
				break
			}
			path = append(path, cur)
			cur = index[pid]
		}
		for k := len(path) - 1; k >= 0; k-- {
			n := path[k]
			level[n] = level[cur] + 1
			known[n] = true
			cur = n
		}
	}
	for i, p := range pairs {
		p.Hierarchy.Level = level[i]
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
