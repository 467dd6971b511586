// Package naming computes collision-free, human-readable label names from a
// caller-supplied snapshot of existing sibling names. All functions are pure
// and deterministic; the caller owns snapshot freshness.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultBase is the base name used when a caller supplies none.
const DefaultBase = "New Label"

// copyPattern matches "<stem> Copy" and "<stem> Copy <n>". The stem match is
// greedy so "A Copy Copy 2" yields stem "A Copy", keeping repeated
// duplication on one counter instead of stacking "Copy Copy".
var copyPattern = regexp.MustCompile(`^(.*) Copy(?: ([0-9]+))?$`)

// UniqueName returns "<base> <k>" for the smallest k >= 1 not present in
// existing. The numbered form is always used, so single creates and bulk
// creates produce consistent sequences.
func UniqueName(existing []string, base string) string {
	if base == "" {
		base = DefaultBase
	}
	taken := toSet(existing)
	for k := 1; ; k++ {
		candidate := fmt.Sprintf("%s %d", base, k)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// EnsureUnique returns want verbatim when it is not taken, otherwise falls
// back to the numbered form. Used for explicitly requested names, which are
// honored exactly when collision-free.
func EnsureUnique(existing []string, want string) string {
	taken := toSet(existing)
	if _, ok := taken[want]; !ok {
		return want
	}
	return UniqueName(existing, want)
}

// CopyName returns the name for a duplicate of original. A first copy is
// "<original> Copy"; when that is taken, or when original is itself a copy,
// the counter advances to the smallest unused "<stem> Copy <n>".
func CopyName(original string, existing []string) string {
	taken := toSet(existing)

	stem := original
	next := 1
	if m := copyPattern.FindStringSubmatch(original); m != nil {
		stem = m[1]
		n := 1
		if m[2] != "" {
			n, _ = strconv.Atoi(m[2])
		}
		next = n + 1
	}

	if next <= 1 {
		candidate := stem + " Copy"
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
		next = 2
	}
	if next < 2 {
		next = 2
	}

	for n := next; ; n++ {
		candidate := fmt.Sprintf("%s Copy %d", stem, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
