package monitor

import (
	"fmt"

	"github.com/talkincode/netpulse/internal/probe"
)

// Thresholds are the internet latency bands, in milliseconds.
type Thresholds struct {
	ExcellentMs int64
	GoodMs      int64
	DegradedMs  int64
}

// DefaultThresholds per the product defaults.
var DefaultThresholds = Thresholds{ExcellentMs: 20, GoodMs: 100, DegradedMs: 200}

type ruleInput struct {
	router     *probe.Result
	internet   probe.Result
	thresholds Thresholds
}

// rule is one row of the classification table. Rules are evaluated
// top-to-bottom and the first match wins, which keeps the priority
// order explicit and testable without probing.
type rule struct {
	level   HealthLevel
	match   func(in ruleInput) bool
	message func(in ruleInput) string
}

var classificationRules = []rule{
	{
		// A configured router that did not answer dominates everything:
		// the local network itself is unreachable.
		level: Offline,
		match: func(in ruleInput) bool { return in.router != nil && !in.router.Success },
		message: func(in ruleInput) string {
			return fmt.Sprintf("cannot reach local network (%s)", in.router.Target)
		},
	},
	{
		level: Poor,
		match: func(in ruleInput) bool { return !in.internet.Success },
		message: func(in ruleInput) string {
			return "local network OK, no internet"
		},
	},
	{
		// Excellent requires the router leg to sit in the excellent band
		// too, when a router is monitored at all.
		level: Excellent,
		match: func(in ruleInput) bool {
			if in.internet.RTTMs > in.thresholds.ExcellentMs {
				return false
			}
			return in.router == nil || in.router.RTTMs <= in.thresholds.ExcellentMs
		},
		message: func(in ruleInput) string {
			return fmt.Sprintf("excellent connectivity: %s", latencies(in))
		},
	},
	{
		level: Good,
		match: func(in ruleInput) bool { return in.internet.RTTMs <= in.thresholds.GoodMs },
		message: func(in ruleInput) string {
			return fmt.Sprintf("good connectivity: %s", latencies(in))
		},
	},
	{
		level: Degraded,
		match: func(in ruleInput) bool { return in.internet.RTTMs <= in.thresholds.DegradedMs },
		message: func(in ruleInput) string {
			return fmt.Sprintf("degraded connectivity: %s", latencies(in))
		},
	},
	{
		level: Poor,
		match: func(in ruleInput) bool { return true },
		message: func(in ruleInput) string {
			return fmt.Sprintf("poor connectivity: %s", latencies(in))
		},
	},
}

// Classify applies the ordered rule table to the aggregated batches.
func Classify(router *probe.Result, internet probe.Result, thresholds Thresholds) (HealthLevel, string) {
	in := ruleInput{router: router, internet: internet, thresholds: thresholds}
	for _, r := range classificationRules {
		if r.match(in) {
			return r.level, r.message(in)
		}
	}
	// Unreachable: the last rule always matches.
	return Poor, "unclassified"
}

func latencies(in ruleInput) string {
	if in.router != nil && in.router.Success {
		return fmt.Sprintf("internet %dms, router %dms", in.internet.RTTMs, in.router.RTTMs)
	}
	return fmt.Sprintf("internet %dms", in.internet.RTTMs)
}
