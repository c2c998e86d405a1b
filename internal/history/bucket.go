package history

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/talkincode/netpulse/internal/domain"
)

// Granularity is the fixed bucket width for trend queries.
type Granularity string

const (
	Minute Granularity = "minute"
	Hour   Granularity = "hour"
	Day    Granularity = "day"
)

// ParseGranularity maps a user-supplied string onto a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Minute, Hour, Day:
		return Granularity(s), nil
	}
	return "", errors.Errorf("history: unknown granularity %q", s)
}

// Bucket aggregates the raw samples whose timestamps fall in one
// granularity window. Latency figures cover successful samples only;
// loss covers every sample in the window.
type Bucket struct {
	PeriodStart       time.Time `json:"period_start" csv:"period_start"`
	AvgLatencyMs      float64   `json:"avg_latency_ms" csv:"avg_latency_ms"`
	MinLatencyMs      int64     `json:"min_latency_ms" csv:"min_latency_ms"`
	MaxLatencyMs      int64     `json:"max_latency_ms" csv:"max_latency_ms"`
	PacketLossPercent float64   `json:"packet_loss_percent" csv:"packet_loss_percent"`
	SampleCount       int       `json:"sample_count" csv:"sample_count"`
}

// truncate aligns ts to the start of its bucket, in UTC.
func (g Granularity) truncate(ts time.Time) time.Time {
	ts = ts.UTC()
	switch g {
	case Hour:
		return ts.Truncate(time.Hour)
	case Day:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return ts.Truncate(time.Minute)
	}
}

func bucketize(samples []domain.ProbeSample, g Granularity) []Bucket {
	if len(samples) == 0 {
		return nil
	}

	type acc struct {
		sum   int64
		min   int64
		max   int64
		ok    int
		total int
	}
	groups := map[time.Time]*acc{}
	for _, s := range samples {
		start := g.truncate(s.Ts)
		a := groups[start]
		if a == nil {
			a = &acc{}
			groups[start] = a
		}
		a.total++
		if !s.Success {
			continue
		}
		if a.ok == 0 || s.LatencyMs < a.min {
			a.min = s.LatencyMs
		}
		if s.LatencyMs > a.max {
			a.max = s.LatencyMs
		}
		a.sum += s.LatencyMs
		a.ok++
	}

	out := make([]Bucket, 0, len(groups))
	for start, a := range groups {
		b := Bucket{
			PeriodStart:       start,
			SampleCount:       a.total,
			PacketLossPercent: 100,
		}
		if a.ok > 0 {
			b.AvgLatencyMs = float64(a.sum) / float64(a.ok)
			b.MinLatencyMs = a.min
			b.MaxLatencyMs = a.max
			b.PacketLossPercent = float64(a.total-a.ok) / float64(a.total) * 100
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out
}
