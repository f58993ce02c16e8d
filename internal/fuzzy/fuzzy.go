// Package fuzzy holds the name-similarity measures used to reconcile in-game
// player names with voice participant display names.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
)

// Normalize lowercases and trims a name
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Compact lowercases a name and removes all whitespace
func Compact(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
}

// CroppedRatio compares two names after normalizing both and cropping them to
// the shorter length. The result is an indel similarity in 0..100. Empty
// names never match.
func CroppedRatio(a, b string) float64 {
	ra := []rune(Normalize(a))
	rb := []rune(Normalize(b))
	n := min(len(ra), len(rb))
	if n == 0 {
		return 0
	}
	return IndelRatio(ra[:n], rb[:n])
}

// IndelRatio is 100 * (1 - indel distance / total length), where the indel
// distance counts insertions and deletions only.
func IndelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	return 100 * float64(2*lcsLength(a, b)) / float64(total)
}

func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSortRatio is the IndelRatio of both names after lowercasing and
// sorting their whitespace-separated tokens, in 0..100
func TokenSortRatio(a, b string) float64 {
	return IndelRatio([]rune(sortTokens(a)), []rune(sortTokens(b)))
}

func sortTokens(name string) string {
	tokens := strings.Fields(strings.ToLower(name))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// SequenceRatio is the matching-blocks ratio 2*M/T used by the automute
// cascade, in 0..1
func SequenceRatio(word, candidate string) float64 {
	if word == "" || candidate == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(candidate, ""), strings.Split(word, ""))
	return m.Ratio()
}

// CloseMatches returns the candidates whose SequenceRatio against word is at
// least cutoff, best first
func CloseMatches(word string, candidates []string, cutoff float64) []string {
	type scored struct {
		name  string
		ratio float64
	}
	var hits []scored
	for _, c := range candidates {
		if r := SequenceRatio(word, c); r >= cutoff {
			hits = append(hits, scored{c, r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ratio > hits[j].ratio })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// EditSimilarity is a Levenshtein similarity in 0..100 over normalized names
func EditSimilarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// BestEdit returns the index of the candidate with the highest EditSimilarity
// to name, or -1 when none exceeds threshold
func BestEdit(name string, candidates []string, threshold float64) int {
	best, bestScore := -1, threshold
	for i, c := range candidates {
		if s := EditSimilarity(name, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
