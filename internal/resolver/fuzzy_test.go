package resolver

import "testing"

func TestRatioIdenticalStrings(t *testing.T) {
	if r := ratio("project alpha", "project alpha"); r != 1.0 {
		t.Fatalf("expected 1.0, got %v", r)
	}
}

func TestRatioCompletelyDifferent(t *testing.T) {
	r := ratio("abc", "xyz")
	if r != 0.0 {
		t.Fatalf("expected 0.0 for no shared characters of equal length, got %v", r)
	}
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	r := tokenSortRatio("migration project api", "api migration project")
	if r != 1.0 {
		t.Fatalf("expected 1.0 for reordered tokens, got %v", r)
	}
}

func TestBestFuzzyScoreBoostsSubstringContainment(t *testing.T) {
	score := bestFuzzyScore("api migration", "API Migration Project")
	if score <= 0.75 {
		t.Fatalf("expected substring containment to push score above the default threshold, got %v", score)
	}
}

func TestBestFuzzyScoreRanksCloserNameHigher(t *testing.T) {
	related := bestFuzzyScore("API Migration", "API Migration Project")
	unrelated := bestFuzzyScore("API Migration", "Quarterly Budget Review")
	if related <= unrelated {
		t.Fatalf("expected a near-identical name to score higher than an unrelated one: related=%v unrelated=%v", related, unrelated)
	}
}
