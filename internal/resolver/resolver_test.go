package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/talkincode/netpulse/internal/discovery"
	"github.com/talkincode/netpulse/internal/probe"
)

// scriptProber succeeds only for targets in the reachable set and
// counts every probe issued.
type scriptProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	calls     []string
}

func newScriptProber(reachable ...string) *scriptProber {
	m := map[string]bool{}
	for _, r := range reachable {
		m[r] = true
	}
	return &scriptProber{reachable: m}
}

func (p *scriptProber) Probe(ctx context.Context, target string, timeout time.Duration) (probe.Result, error) {
	if err := ctx.Err(); err != nil {
		return probe.Result{}, err
	}
	p.mu.Lock()
	p.calls = append(p.calls, target)
	p.mu.Unlock()
	if p.reachable[target] {
		return probe.Result{Target: target, Success: true, RTTMs: 1, Timestamp: time.Now().UTC()}, nil
	}
	return probe.Result{Target: target, ErrorDetail: "unreachable", Timestamp: time.Now().UTC()}, nil
}

func (p *scriptProber) ProbeMany(ctx context.Context, target string, count int, timeout time.Duration) ([]probe.Result, error) {
	out := make([]probe.Result, 0, count)
	for i := 0; i < count; i++ {
		r, err := p.Probe(ctx, target, timeout)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *scriptProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func gwFixed(addr string) discovery.GatewayFunc {
	return func() (string, error) { return addr, nil }
}

func gwNone() (string, error) {
	return "", errors.New("no route")
}

func TestExplicitRouterWinsEvenWhenDown(t *testing.T) {
	p := newScriptProber("1.1.1.1")
	r := New(Settings{RouterAddr: "192.168.77.1", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwNone)

	addr, ok, err := r.RouterAddr(context.Background())
	if err != nil {
		t.Fatalf("RouterAddr: %v", err)
	}
	if !ok || addr != "192.168.77.1" {
		t.Errorf("got (%q, %v), want the operator's address accepted unchecked", addr, ok)
	}
	for _, c := range p.calls {
		if c == "192.168.77.1" {
			t.Error("explicit router address must not be probed")
		}
	}
}

func TestAutoRouterUsesDiscoveredGateway(t *testing.T) {
	p := newScriptProber("192.168.8.1", "1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwFixed("192.168.8.1"))

	addr, ok, err := r.RouterAddr(context.Background())
	if err != nil {
		t.Fatalf("RouterAddr: %v", err)
	}
	if !ok || addr != "192.168.8.1" {
		t.Errorf("got (%q, %v), want discovered gateway", addr, ok)
	}
}

func TestAutoRouterFallsBackWhenGatewayUnreachable(t *testing.T) {
	want := discovery.FallbackGateways[1]
	p := newScriptProber(want, "1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwFixed("192.168.8.1"))

	addr, ok, err := r.RouterAddr(context.Background())
	if err != nil {
		t.Fatalf("RouterAddr: %v", err)
	}
	if !ok || addr != want {
		t.Errorf("got (%q, %v), want first reachable fallback %q", addr, ok, want)
	}
}

func TestRouterAbsentWhenNothingResponds(t *testing.T) {
	p := newScriptProber("1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwNone)

	addr, ok, err := r.RouterAddr(context.Background())
	if err != nil {
		t.Fatalf("RouterAddr: %v", err)
	}
	if ok || addr != "" {
		t.Errorf("got (%q, %v), want absent router", addr, ok)
	}
}

func TestInternetPrefersConfiguredTarget(t *testing.T) {
	p := newScriptProber("8.8.4.4")
	r := New(Settings{RouterAddr: "10.0.0.1", InternetTarget: "8.8.4.4", FallbackEnabled: true}, p, gwNone)

	target, err := r.InternetTarget(context.Background())
	if err != nil {
		t.Fatalf("InternetTarget: %v", err)
	}
	if target != "8.8.4.4" {
		t.Errorf("target = %q, want configured target", target)
	}
}

func TestInternetFallsBackThroughCatalog(t *testing.T) {
	p := newScriptProber("8.8.8.8")
	r := New(Settings{RouterAddr: "10.0.0.1", InternetTarget: "203.0.113.5", FallbackEnabled: true}, p, gwNone)

	target, err := r.InternetTarget(context.Background())
	if err != nil {
		t.Fatalf("InternetTarget: %v", err)
	}
	if target != "8.8.8.8" {
		t.Errorf("target = %q, want first reachable catalog entry", target)
	}
}

func TestInternetNeverAbsent(t *testing.T) {
	p := newScriptProber()
	r := New(Settings{RouterAddr: "10.0.0.1", InternetTarget: "203.0.113.5", FallbackEnabled: true}, p, gwNone)

	target, err := r.InternetTarget(context.Background())
	if err != nil {
		t.Fatalf("InternetTarget: %v", err)
	}
	if target != "203.0.113.5" {
		t.Errorf("target = %q, want the primary target even though unreachable", target)
	}
}

func TestInternetFallbackDisabled(t *testing.T) {
	p := newScriptProber()
	r := New(Settings{RouterAddr: "10.0.0.1", InternetTarget: "203.0.113.5", FallbackEnabled: false}, p, gwNone)

	target, err := r.InternetTarget(context.Background())
	if err != nil {
		t.Fatalf("InternetTarget: %v", err)
	}
	if target != "203.0.113.5" {
		t.Errorf("target = %q, want configured target", target)
	}
	if got := p.probeCount(); got != 1 {
		t.Errorf("probed %d candidates with fallback disabled, want 1", got)
	}
}

func TestResolutionIsCached(t *testing.T) {
	p := newScriptProber("192.168.8.1", "1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwFixed("192.168.8.1"))

	ctx := context.Background()
	if _, _, err := r.RouterAddr(ctx); err != nil {
		t.Fatalf("RouterAddr: %v", err)
	}
	first := p.probeCount()
	for i := 0; i < 5; i++ {
		if _, _, err := r.RouterAddr(ctx); err != nil {
			t.Fatalf("RouterAddr: %v", err)
		}
		if _, err := r.InternetTarget(ctx); err != nil {
			t.Fatalf("InternetTarget: %v", err)
		}
	}
	if got := p.probeCount(); got != first {
		t.Errorf("cached accessors issued %d extra probes", got-first)
	}
}

func TestConcurrentFirstCallersResolveOnce(t *testing.T) {
	p := newScriptProber("192.168.8.1", "1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwFixed("192.168.8.1"))

	var wg sync.WaitGroup
	addrs := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, _, err := r.RouterAddr(context.Background())
			if err != nil {
				t.Errorf("RouterAddr: %v", err)
				return
			}
			addrs[i] = addr
		}(i)
	}
	wg.Wait()

	for _, addr := range addrs {
		if addr != "192.168.8.1" {
			t.Fatalf("concurrent caller saw %q, want the single cached result", addr)
		}
	}
	// Resolution probes the gateway and the internet target once each.
	if got := p.probeCount(); got != 2 {
		t.Errorf("resolution issued %d probes, want 2", got)
	}
}

func TestUseAfterClose(t *testing.T) {
	p := newScriptProber("1.1.1.1")
	r := New(Settings{RouterAddr: "10.0.0.1", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwNone)
	r.Close()

	if _, _, err := r.RouterAddr(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RouterAddr after Close = %v, want ErrClosed", err)
	}
	if _, err := r.InternetTarget(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("InternetTarget after Close = %v, want ErrClosed", err)
	}
}

func TestCancellationPropagates(t *testing.T) {
	p := newScriptProber("1.1.1.1")
	r := New(Settings{RouterAddr: "auto", InternetTarget: "1.1.1.1", FallbackEnabled: true}, p, gwNone)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.RouterAddr(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RouterAddr with cancelled ctx = %v, want context.Canceled", err)
	}
}
