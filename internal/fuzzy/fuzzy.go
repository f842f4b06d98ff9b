// Package fuzzy ranks candidate strings against a short typed pattern.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Match is one candidate that contains the pattern as a subsequence.
type Match struct {
	Index     int     `json:"index"` // position in the input slice
	Value     string  `json:"value"`
	Score     float64 `json:"score"`
	Positions []int   `json:"positions"` // rune offsets of matched characters
}

// Score matches pattern against s as a case-insensitive subsequence, taking
// the leftmost occurrence of each pattern rune. Runs of consecutive matches
// score progressively higher; an exact case-insensitive match scores +Inf.
func Score(pattern, s string) (score float64, positions []int, ok bool) {
	if pattern == "" {
		return 0, nil, true
	}

	p := []rune(pattern)
	for i := range p {
		p[i] = unicode.ToLower(p[i])
	}

	positions = make([]int, 0, len(p))
	pi := 0
	run := 0.0
	offset := 0
	for _, r := range s {
		if pi < len(p) && unicode.ToLower(r) == p[pi] {
			positions = append(positions, offset)
			pi++
			run = 1 + 2*run
		} else {
			run = 0
		}
		score += run
		offset++
	}
	if pi != len(p) {
		return 0, nil, false
	}
	if utf8.RuneCountInString(s) == len(p) {
		return math.Inf(1), positions, true
	}
	return score, positions, true
}

// Filter returns the candidates that contain pattern, best first. Ties are
// broken by the earliest first matched rune, then by input order. An empty
// pattern returns every candidate in input order.
func Filter(pattern string, candidates []string) []Match {
	matches := make([]Match, 0)
	for i, c := range candidates {
		score, pos, ok := Score(pattern, c)
		if !ok {
			continue
		}
		matches = append(matches, Match{Index: i, Value: c, Score: score, Positions: pos})
	}
	if pattern == "" {
		return matches
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if fa, fb := first(a.Positions), first(b.Positions); fa != fb {
			return fa < fb
		}
		return a.Index < b.Index
	})
	return matches
}

func first(pos []int) int {
	if len(pos) == 0 {
		return 0
	}
	return pos[0]
}

// Values returns the matched strings in ranked order.
func Values(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Value
	}
	return out
}

// Closest returns the candidate with the highest Jaro-Winkler similarity to
// s, provided it reaches threshold. It is the fallback for misspellings that
// are not subsequences of the intended name.
func Closest(s string, candidates []string, threshold float32) (string, bool) {
	needle := strings.ToLower(s)
	best := ""
	bestScore := float32(-1)
	for _, c := range candidates {
		sim, err := edlib.StringsSimilarity(needle, strings.ToLower(c), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if sim > bestScore {
			best, bestScore = c, sim
		}
	}
	if bestScore < threshold {
		return "", false
	}
	return best, true
}
