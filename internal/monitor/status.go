package monitor

import (
	"time"

	"github.com/talkincode/netpulse/internal/probe"
)

// HealthLevel classifies overall network path health. The numeric
// ordering is part of the contract: worse levels compare lower.
type HealthLevel int

const (
	Offline HealthLevel = iota
	Poor
	Degraded
	Good
	Excellent
)

func (l HealthLevel) String() string {
	switch l {
	case Offline:
		return "offline"
	case Poor:
		return "poor"
	case Degraded:
		return "degraded"
	case Good:
		return "good"
	case Excellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Status is the immutable snapshot produced by one monitoring cycle.
// Router is nil when no router is configured or resolvable.
type Status struct {
	Health    HealthLevel   `json:"health"`
	Router    *probe.Result `json:"router,omitempty"`
	Internet  probe.Result  `json:"internet"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
}

// IsUsable reports whether the connection is good enough for normal use.
func (s Status) IsUsable() bool {
	return s.Health >= Degraded
}
