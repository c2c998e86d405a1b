package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/talkincode/netpulse/pkg/metrics"
)

// DefaultMaxFileBytes is the rotation threshold when none is configured.
const DefaultMaxFileBytes = 25 * 1024 * 1024

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sink writes metric readings as a JSON array, one file at a time,
// rotating on size or UTC date change. It is an independent record of
// the measurement stream: sink trouble is logged and absorbed so the
// cycle loop never sees it. A file left open by a killed process is an
// accepted limitation; only cleanly closed files are valid documents.
type Sink struct {
	dir      string
	maxBytes int64
	runID    string
	disabled bool

	mu         sync.Mutex
	f          *os.File
	written    int64
	openedDate string
	seq        int
	hasRecord  bool
}

// NewSink creates a sink rooted at dir. An empty dir disables the sink.
func NewSink(dir string, maxBytes int64, runID string) *Sink {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if runID == "" {
		runID = "norun"
	}
	if dir == "" {
		return &Sink{disabled: true}
	}
	return &Sink{dir: dir, maxBytes: maxBytes, runID: runID}
}

// Export appends one record per reading to the current file. Every
// failure is logged and swallowed; the call always returns to the
// caller's cycle loop normally.
func (s *Sink) Export(readings []metrics.Reading) {
	if s.disabled || len(readings) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		if err := s.writeRecordLocked(r); err != nil {
			zap.L().Warn("telemetry: export failed", zap.Error(err))
			metrics.IncrCounter("netpulse_telemetry_export_failures_total", nil)
			return
		}
	}
}

// Close finalizes the open file so it forms a valid JSON array.
func (s *Sink) Close() error {
	if s.disabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFileLocked()
}

func (s *Sink) writeRecordLocked(r metrics.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	today := time.Now().UTC().Format("20060102")
	if s.f != nil && (s.openedDate != today || s.written+int64(len(data))+2 > s.maxBytes) {
		if err := s.closeFileLocked(); err != nil {
			return err
		}
	}
	if s.f == nil {
		if err := s.openFileLocked(today); err != nil {
			return err
		}
	}

	sep := ",\n"
	if !s.hasRecord {
		sep = "\n"
	}
	n, err := s.f.WriteString(sep + string(data))
	s.written += int64(n)
	if err != nil {
		return err
	}
	s.hasRecord = true
	return nil
}

func (s *Sink) openFileLocked(date string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if s.openedDate != date {
		s.seq = 0
	}

	name := fmt.Sprintf("metrics-%s-%s.json", s.runID, date)
	if s.seq > 0 {
		name = fmt.Sprintf("metrics-%s-%s-%d.json", s.runID, date, s.seq)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := f.WriteString("[")
	if err != nil {
		_ = f.Close()
		return err
	}

	s.f = f
	s.written = int64(n)
	s.openedDate = date
	s.seq++
	s.hasRecord = false
	return nil
}

func (s *Sink) closeFileLocked() error {
	if s.f == nil {
		return nil
	}
	_, werr := s.f.WriteString("\n]\n")
	cerr := s.f.Close()
	s.f = nil
	s.written = 0
	s.hasRecord = false
	if werr != nil {
		return werr
	}
	return cerr
}
