package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	pinglib "github.com/go-ping/ping"
	"go.uber.org/zap"
)

// Result is the outcome of a single reachability probe. Exactly one of
// RTTMs/ErrorDetail is meaningful depending on Success.
type Result struct {
	Target      string    `json:"target"`
	Success     bool      `json:"success"`
	RTTMs       int64     `json:"rtt_ms"`
	Timestamp   time.Time `json:"timestamp"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// Prober issues timed reachability probes against a single target.
// Implementations convert unexpected faults into failed Results; the only
// error they may return is the caller's cancellation.
type Prober interface {
	Probe(ctx context.Context, target string, timeout time.Duration) (Result, error)
	ProbeMany(ctx context.Context, target string, count int, timeout time.Duration) ([]Result, error)
}

// fallbackPorts are tried with a plain TCP dial when ICMP/UDP ping is not
// permitted on the platform.
var fallbackPorts = []int{53, 80, 443}

// PingProber probes with ICMP/UDP ping in unprivileged mode, falling back
// to a TCP dial against common ports when ping cannot run.
type PingProber struct{}

func NewPingProber() *PingProber {
	return &PingProber{}
}

func (p *PingProber) Probe(ctx context.Context, target string, timeout time.Duration) (res Result, err error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	defer func() {
		// A panic inside the ping library counts as a failed probe, not a
		// crash of the monitoring cycle.
		if r := recover(); r != nil {
			zap.L().Warn("probe panic recovered", zap.String("target", target), zap.Any("panic", r))
			res = failure(target, fmt.Sprintf("probe fault: %v", r))
			err = nil
		}
	}()

	pinger, perr := pinglib.NewPinger(target)
	if perr != nil {
		return failure(target, perr.Error()), nil
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	// Unprivileged mode so the process can run without root where supported.
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe fault: %v", r)
			}
		}()
		done <- pinger.Run()
	}()

	var rerr error
	select {
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return Result{}, ctx.Err()
	case rerr = <-done:
	}
	if rerr != nil {
		if cerr := ctx.Err(); cerr != nil {
			return Result{}, cerr
		}
		zap.L().Debug("icmp/udp ping failed, trying tcp fallback",
			zap.String("target", target), zap.Error(rerr))
		return p.tcpProbe(ctx, target, timeout)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return success(target, stats.AvgRtt), nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return Result{}, cerr
	}
	return failure(target, "no reply within timeout"), nil
}

// ProbeMany issues count sequential probes with the same per-probe timeout
// and returns them in issue order. It stops early only on cancellation.
func (p *PingProber) ProbeMany(ctx context.Context, target string, count int, timeout time.Duration) ([]Result, error) {
	if count <= 0 {
		count = 1
	}
	results := make([]Result, 0, count)
	for i := 0; i < count; i++ {
		r, err := p.Probe(ctx, target, timeout)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (p *PingProber) tcpProbe(ctx context.Context, target string, timeout time.Duration) (Result, error) {
	dialer := net.Dialer{Timeout: timeout}
	var lastErr string
	for _, port := range fallbackPorts {
		addr := net.JoinHostPort(target, fmt.Sprintf("%d", port))
		start := time.Now()
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return success(target, time.Since(start)), nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return Result{}, cerr
		}
		lastErr = err.Error()
	}
	return failure(target, lastErr), nil
}

func success(target string, rtt time.Duration) Result {
	return Result{
		Target:    target,
		Success:   true,
		RTTMs:     rtt.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}

func failure(target, detail string) Result {
	return Result{
		Target:      target,
		Timestamp:   time.Now().UTC(),
		ErrorDetail: detail,
	}
}
