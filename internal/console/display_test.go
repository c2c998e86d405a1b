package console

import (
	"strings"
	"testing"
	"time"

	"github.com/talkincode/netpulse/internal/monitor"
	"github.com/talkincode/netpulse/internal/probe"
)

func TestRenderCarriesMessageAndTime(t *testing.T) {
	s := monitor.Status{
		Health:    monitor.Good,
		Internet:  probe.Result{Target: "1.1.1.1", Success: true, RTTMs: 42},
		Timestamp: time.Date(2026, 8, 29, 13, 30, 5, 0, time.UTC),
		Message:   "good connectivity: internet 42ms",
	}
	line := Render(s)
	if !strings.Contains(line, "good connectivity: internet 42ms") {
		t.Errorf("rendered line %q must contain the message", line)
	}
	if !strings.Contains(line, "13:30:05") {
		t.Errorf("rendered line %q must contain the cycle time", line)
	}
}

func TestRenderShowsFailureDetail(t *testing.T) {
	s := monitor.Status{
		Health:    monitor.Poor,
		Internet:  probe.Result{Target: "1.1.1.1", ErrorDetail: "no reply within timeout"},
		Timestamp: time.Now().UTC(),
		Message:   "local network OK, no internet",
	}
	if line := Render(s); !strings.Contains(line, "no reply within timeout") {
		t.Errorf("rendered line %q must surface the probe error", line)
	}
}
