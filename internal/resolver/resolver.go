package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/netpulse/internal/discovery"
	"github.com/talkincode/netpulse/internal/probe"
)

// AutoSentinel in the router setting asks for live gateway discovery.
const AutoSentinel = "auto"

// ErrClosed is returned by every accessor after Close.
var ErrClosed = errors.New("resolver: used after Close")

// Settings are the operator inputs the resolver works from.
type Settings struct {
	RouterAddr      string
	InternetTarget  string
	ProbeTimeout    time.Duration
	FallbackEnabled bool
}

// Resolver settles which addresses to probe, exactly once per process.
// The first accessor performs the probing sequence under the mutex;
// later callers read the cached answer. Re-resolution requires a fresh
// process.
type Resolver struct {
	settings Settings
	prober   probe.Prober
	gateway  discovery.GatewayFunc

	mu       sync.Mutex
	resolved bool
	closed   bool
	router   string
	internet string
}

func New(settings Settings, prober probe.Prober, gw discovery.GatewayFunc) *Resolver {
	if gw == nil {
		gw = discovery.DefaultGateway
	}
	return &Resolver{settings: settings, prober: prober, gateway: gw}
}

// RouterAddr returns the resolved router address. ok is false when no
// router candidate responded; callers must then skip router monitoring
// for the remainder of the process lifetime.
func (r *Resolver) RouterAddr(ctx context.Context) (addr string, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.resolveLocked(ctx); err != nil {
		return "", false, err
	}
	return r.router, r.router != "", nil
}

// InternetTarget returns the resolved WAN probe target. It always
// yields an address: when nothing responded during resolution it falls
// back to the configured/primary target so monitoring can still report
// the failure.
func (r *Resolver) InternetTarget(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.resolveLocked(ctx); err != nil {
		return "", err
	}
	return r.internet, nil
}

// Close disposes the resolver. Any accessor call afterwards fails with
// ErrClosed.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Resolver) resolveLocked(ctx context.Context) error {
	if r.closed {
		return ErrClosed
	}
	if r.resolved {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	router, err := r.resolveRouter(ctx)
	if err != nil {
		return err
	}
	internet, err := r.resolveInternet(ctx)
	if err != nil {
		return err
	}

	r.router = router
	r.internet = internet
	r.resolved = true
	zap.L().Info("probe targets resolved",
		zap.String("router", router), zap.String("internet", internet))
	return nil
}

func (r *Resolver) resolveRouter(ctx context.Context) (string, error) {
	configured := strings.TrimSpace(r.settings.RouterAddr)
	if configured != "" && !strings.EqualFold(configured, AutoSentinel) {
		// Operator intent wins even if the address is down right now.
		return configured, nil
	}

	if addr, err := r.gateway(); err == nil && addr != "" {
		res, perr := r.prober.Probe(ctx, addr, r.settings.ProbeTimeout)
		if perr != nil {
			return "", perr
		}
		if res.Success {
			return addr, nil
		}
		zap.L().Debug("discovered gateway unreachable", zap.String("addr", addr))
	}

	for _, addr := range discovery.FallbackGateways {
		res, perr := r.prober.Probe(ctx, addr, r.settings.ProbeTimeout)
		if perr != nil {
			return "", perr
		}
		if res.Success {
			return addr, nil
		}
	}

	zap.L().Warn("no router candidate responded, router monitoring disabled")
	return "", nil
}

func (r *Resolver) resolveInternet(ctx context.Context) (string, error) {
	configured := strings.TrimSpace(r.settings.InternetTarget)

	candidates := []string{configured}
	if r.settings.FallbackEnabled {
		candidates = discovery.CandidateTargets(configured)
	}

	primary := ""
	for _, addr := range candidates {
		if addr == "" {
			continue
		}
		if primary == "" {
			primary = addr
		}
		res, perr := r.prober.Probe(ctx, addr, r.settings.ProbeTimeout)
		if perr != nil {
			return "", perr
		}
		if res.Success {
			return addr, nil
		}
	}

	if primary == "" {
		primary = discovery.WanTargets[0]
	}
	zap.L().Warn("no internet candidate responded, keeping primary target",
		zap.String("target", primary))
	return primary, nil
}
