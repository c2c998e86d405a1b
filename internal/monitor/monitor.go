package monitor

import (
	"context"
	"math"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talkincode/netpulse/internal/domain"
	"github.com/talkincode/netpulse/internal/probe"
	"github.com/talkincode/netpulse/internal/resolver"
	"github.com/talkincode/netpulse/pkg/metrics"
)

// TopicStatusChange carries (current Status, previous *Status) on the
// event bus whenever the classified health level changes.
const TopicStatusChange = "netpulse:status:change"

// Config tunes one monitoring cycle.
type Config struct {
	PingsPerCycle int
	ProbeTimeout  time.Duration
	Thresholds    Thresholds
}

// ChangeFunc receives the new status and the previous one (nil on the
// first notification).
type ChangeFunc func(current Status, previous *Status)

// Monitor runs monitoring cycles and announces health transitions.
// Cycles must not overlap: the previous-status state is single-writer
// by contract with the driver.
type Monitor struct {
	cfg      Config
	resolver *resolver.Resolver
	prober   probe.Prober
	bus      evbus.Bus
	onChange []ChangeFunc
	prev     *Status
}

func New(cfg Config, res *resolver.Resolver, prober probe.Prober, bus evbus.Bus) *Monitor {
	if cfg.PingsPerCycle <= 0 {
		cfg.PingsPerCycle = 3
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds
	}
	return &Monitor{cfg: cfg, resolver: res, prober: prober, bus: bus}
}

// OnChange registers a callback invoked synchronously, in registration
// order, within the cycle that detected the transition.
func (m *Monitor) OnChange(fn ChangeFunc) {
	m.onChange = append(m.onChange, fn)
}

// RunCycle executes one full monitoring cycle: resolve targets, probe
// both legs concurrently, aggregate, classify, and notify on health
// transitions. A cancelled context aborts with an error and no status.
func (m *Monitor) RunCycle(ctx context.Context) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	routerAddr, hasRouter, err := m.resolver.RouterAddr(ctx)
	if err != nil {
		return nil, err
	}
	target, err := m.resolver.InternetTarget(ctx)
	if err != nil {
		return nil, err
	}

	var routerAgg *probe.Result
	var internetAgg probe.Result

	g, gctx := errgroup.WithContext(ctx)
	if hasRouter {
		g.Go(func() error {
			results, err := m.prober.ProbeMany(gctx, routerAddr, m.cfg.PingsPerCycle, m.cfg.ProbeTimeout)
			if err != nil {
				return err
			}
			m.recordBatch(domain.TargetRouter, results)
			agg := aggregate(results)
			routerAgg = &agg
			return nil
		})
	}
	g.Go(func() error {
		results, err := m.prober.ProbeMany(gctx, target, m.cfg.PingsPerCycle, m.cfg.ProbeTimeout)
		if err != nil {
			return err
		}
		m.recordBatch(domain.TargetInternet, results)
		internetAgg = aggregate(results)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	level, message := Classify(routerAgg, internetAgg, m.cfg.Thresholds)
	status := &Status{
		Health:    level,
		Router:    routerAgg,
		Internet:  internetAgg,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}

	metrics.IncrCounter("netpulse_cycles_total", nil)

	if m.prev == nil || m.prev.Health != status.Health {
		m.notify(*status, m.prev)
	}
	m.prev = status
	return status, nil
}

// LastStatus returns the previous cycle's snapshot, nil before the
// first completed cycle.
func (m *Monitor) LastStatus() *Status {
	return m.prev
}

func (m *Monitor) notify(current Status, previous *Status) {
	prevLevel := "none"
	if previous != nil {
		prevLevel = previous.Health.String()
	}
	zap.L().Info("health level changed",
		zap.String("from", prevLevel),
		zap.String("to", current.Health.String()),
		zap.String("message", current.Message))

	for _, fn := range m.onChange {
		fn(current, previous)
	}
	if m.bus != nil {
		m.bus.Publish(TopicStatusChange, current, previous)
	}
}

func (m *Monitor) recordBatch(targetType string, results []probe.Result) {
	tags := map[string]string{"target": targetType}
	for _, r := range results {
		if r.Success {
			metrics.ObserveHistogram("netpulse_probe_latency_ms", tags, float64(r.RTTMs))
		} else {
			metrics.IncrCounter("netpulse_probe_failures_total", tags)
		}
	}
}

// aggregate folds a batch of repeated probes into one representative
// result: median RTT over the successful probes, or the last failure
// when nothing got through. Median rather than mean so a single spike
// cannot dominate the at-a-glance number.
func aggregate(results []probe.Result) probe.Result {
	if len(results) == 0 {
		return probe.Result{ErrorDetail: "no probes issued", Timestamp: time.Now().UTC()}
	}

	rtts := make([]float64, 0, len(results))
	var lastSuccess probe.Result
	for _, r := range results {
		if r.Success {
			rtts = append(rtts, float64(r.RTTMs))
			lastSuccess = r
		}
	}
	if len(rtts) == 0 {
		return results[len(results)-1]
	}

	median, err := stats.Median(rtts)
	if err != nil {
		median = float64(lastSuccess.RTTMs)
	}
	agg := lastSuccess
	agg.RTTMs = int64(math.Round(median))
	return agg
}
