// Package idalloc allocates fresh marker identifiers by incrementing the
// trailing run of lowercase letters of a seed: "step1" → "step1a",
// "step1a" → "step1b", "B7z" → "B7aa".
package idalloc

// Set is a collection of identifiers in use.
type Set map[string]struct{}

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// SplitSuffix separates seed into its base and its trailing run of
// lowercase ASCII letters.
func SplitSuffix(seed string) (base, suffix string) {
	i := len(seed)
	for i > 0 && seed[i-1] >= 'a' && seed[i-1] <= 'z' {
		i--
	}
	return seed[:i], seed[i:]
}

// Increment advances a suffix over 'a'..'z' with the last letter least
// significant: "" → "a", "z" → "aa", "az" → "ba", "zz" → "aaa".
func Increment(suffix string) string {
	b := []byte(suffix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'z' {
			b[i]++
			return string(b)
		}
		b[i] = 'a'
	}
	return "a" + string(b)
}

// Next returns the first identifier after seed that is not in inUse.
// The result depends only on seed and on which ids inUse contains.
func Next(seed string, inUse Set) string {
	base, suffix := SplitSuffix(seed)
	for {
		suffix = Increment(suffix)
		if candidate := base + suffix; !inUse.Has(candidate) {
			return candidate
		}
	}
}
