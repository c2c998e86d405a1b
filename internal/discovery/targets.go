package discovery

// WanTargets are well-known anycast resolvers used as internet probe
// candidates, in priority order.
var WanTargets = []string{
	"1.1.1.1",
	"8.8.8.8",
	"9.9.9.9",
	"208.67.222.222",
}

// CandidateTargets returns the WAN probe candidate list with the
// configured target promoted to the front. A configured target that
// duplicates a catalog entry appears only once.
func CandidateTargets(configured string) []string {
	out := make([]string, 0, len(WanTargets)+1)
	if configured != "" {
		out = append(out, configured)
	}
	for _, t := range WanTargets {
		if t == configured {
			continue
		}
		out = append(out, t)
	}
	return out
}
