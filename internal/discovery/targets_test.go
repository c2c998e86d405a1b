package discovery

import "testing"

func TestCandidateTargetsPromotesConfigured(t *testing.T) {
	got := CandidateTargets("203.0.113.5")
	if got[0] != "203.0.113.5" {
		t.Errorf("first candidate = %q, want the configured target", got[0])
	}
	if len(got) != len(WanTargets)+1 {
		t.Errorf("candidate count = %d, want %d", len(got), len(WanTargets)+1)
	}
}

func TestCandidateTargetsDeduplicates(t *testing.T) {
	got := CandidateTargets("8.8.8.8")
	if got[0] != "8.8.8.8" {
		t.Errorf("first candidate = %q, want the configured target", got[0])
	}
	seen := map[string]int{}
	for _, c := range got {
		seen[c]++
	}
	if seen["8.8.8.8"] != 1 {
		t.Error("configured target duplicating a catalog entry must appear once")
	}
	if len(got) != len(WanTargets) {
		t.Errorf("candidate count = %d, want %d", len(got), len(WanTargets))
	}
}

func TestCandidateTargetsEmptyConfigured(t *testing.T) {
	got := CandidateTargets("")
	if len(got) != len(WanTargets) || got[0] != WanTargets[0] {
		t.Errorf("empty configured target must yield the plain catalog, got %v", got)
	}
}
