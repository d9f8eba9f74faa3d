package resolver

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ratio is fuzzywuzzy's plain Levenshtein ratio, ported to Go over
// agnivade/levenshtein's edit-distance primitive: 1 - distance/maxlen.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// partialRatio is fuzzywuzzy's partial_ratio: the best ratio between the
// shorter string and every equal-length window of the longer one.
func partialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return ratio(a, b)
	}
	if len(longer) <= len(shorter) {
		return ratio(a, b)
	}

	best := 0.0
	window := len(shorter)
	for i := 0; i+window <= len(longer); i++ {
		r := ratio(shorter, longer[i:i+window])
		if r > best {
			best = r
		}
	}
	return best
}

// sortedTokens splits on whitespace and sorts the tokens — the
// normalization step token_sort_ratio is built on; the caller rejoins them.
func sortedTokens(s string) []string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return fields
}

func tokenSortRatio(a, b string) float64 {
	return ratio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
}

// tokenSetRatio is fuzzywuzzy's token_set_ratio: compare the shared-token
// intersection against each side's full token set and take the best of the
// three pairings, which makes it robust to one string being a superset of
// the other's words.
func tokenSetRatio(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	var intersection, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(intersection)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sorted := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sorted + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sorted + " " + strings.Join(onlyB, " "))

	scores := []float64{
		ratio(sorted, combinedA),
		ratio(sorted, combinedB),
		ratio(combinedA, combinedB),
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

// bestFuzzyScore combines all four measures and applies the
// substring-containment boost, mirroring _try_fuzzy_match exactly.
func bestFuzzyScore(term, candidate string) float64 {
	termLower := strings.ToLower(term)
	candidateLower := strings.ToLower(candidate)

	scores := []float64{
		ratio(termLower, candidateLower),
		partialRatio(termLower, candidateLower),
		tokenSortRatio(termLower, candidateLower),
		tokenSetRatio(termLower, candidateLower),
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	if strings.Contains(candidateLower, termLower) || strings.Contains(termLower, candidateLower) {
		max = max * 1.2
		if max > 1.0 {
			max = 1.0
		}
	}
	return max
}
