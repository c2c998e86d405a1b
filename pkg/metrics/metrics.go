package metrics

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

// Reading is one exported measurement in the generic metrics data
// model: a named counter, gauge or histogram with string tags. For
// histograms Value is unused and Count/Sum carry the distribution.
type Reading struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Type        string            `json:"type"`
	Tags        map[string]string `json:"tags,omitempty"`
	Value       float64           `json:"value"`
	Count       uint64            `json:"count,omitempty"`
	Sum         float64           `json:"sum,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

const (
	TypeCounter   = "counter"
	TypeGauge     = "gauge"
	TypeHistogram = "histogram"
)

type histogram struct {
	count uint64
	sum   float64
}

type meta struct {
	description string
	unit        string
}

type registry struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string]*histogram
	metas      map[string]meta
	keys       map[string]keyParts
	tsdb       tstorage.Storage
	node       *snowflake.Node
	runID      string
}

type keyParts struct {
	name string
	tags map[string]string
}

var (
	regMu sync.RWMutex
	reg   *registry
)

// InitMetrics prepares the in-process metrics registry and its backing
// time-series partition under workdir (in-memory only when workdir is
// empty). Safe to call once at startup; failures leave metrics
// recording as a no-op.
func InitMetrics(workdir string) error {
	opts := []tstorage.Option{
		tstorage.WithTimestampPrecision(tstorage.Milliseconds),
		tstorage.WithRetention(24 * time.Hour),
	}
	if workdir != "" {
		opts = append(opts, tstorage.WithDataPath(filepath.Join(workdir, "tsdata")))
	}
	tsdb, err := tstorage.NewStorage(opts...)
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		_ = tsdb.Close()
		return err
	}

	regMu.Lock()
	reg = &registry{
		counters:   map[string]float64{},
		gauges:     map[string]float64{},
		histograms: map[string]*histogram{},
		metas:      map[string]meta{},
		keys:       map[string]keyParts{},
		tsdb:       tsdb,
		node:       node,
		runID:      node.Generate().Base36(),
	}
	regMu.Unlock()
	return nil
}

// RunID identifies this process run in exported artifacts such as
// telemetry file names.
func RunID() string {
	regMu.RLock()
	defer regMu.RUnlock()
	if reg == nil {
		return "norun"
	}
	return reg.runID
}

// Describe registers an optional description and unit for a metric name.
func Describe(name, description, unit string) {
	regMu.RLock()
	r := reg
	regMu.RUnlock()
	if r == nil {
		return
	}
	r.mu.Lock()
	r.metas[name] = meta{description: description, unit: unit}
	r.mu.Unlock()
}

// IncrCounter adds one to the counter identified by name and tags.
func IncrCounter(name string, tags map[string]string) {
	AddCounter(name, tags, 1)
}

// AddCounter adds delta to the counter identified by name and tags.
func AddCounter(name string, tags map[string]string, delta float64) {
	r := current()
	if r == nil {
		return
	}
	k := key(name, tags)
	r.mu.Lock()
	r.counters[k] += delta
	r.keys[k] = keyParts{name: name, tags: tags}
	total := r.counters[k]
	r.mu.Unlock()
	r.insert(name, tags, total)
}

// SetGauge records the current value of a named gauge.
func SetGauge(name string, value int64) {
	SetGaugeTagged(name, nil, float64(value))
}

// SetGaugeTagged records a gauge value with tags.
func SetGaugeTagged(name string, tags map[string]string, value float64) {
	r := current()
	if r == nil {
		return
	}
	k := key(name, tags)
	r.mu.Lock()
	r.gauges[k] = value
	r.keys[k] = keyParts{name: name, tags: tags}
	r.mu.Unlock()
	r.insert(name, tags, value)
}

// ObserveHistogram records one sample into the histogram identified by
// name and tags.
func ObserveHistogram(name string, tags map[string]string, value float64) {
	r := current()
	if r == nil {
		return
	}
	k := key(name, tags)
	r.mu.Lock()
	h := r.histograms[k]
	if h == nil {
		h = &histogram{}
		r.histograms[k] = h
	}
	h.count++
	h.sum += value
	r.keys[k] = keyParts{name: name, tags: tags}
	r.mu.Unlock()
	r.insert(name, tags, value)
}

// Snapshot returns the current value of every registered metric as one
// Reading per (name, tags) pair, counters first, then gauges, then
// histograms, each group ordered by key.
func Snapshot() []Reading {
	r := current()
	if r == nil {
		return nil
	}
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Reading, 0, len(r.counters)+len(r.gauges)+len(r.histograms))
	for _, k := range sortedKeys(r.counters) {
		kp := r.keys[k]
		out = append(out, r.readingLocked(kp, TypeCounter, now, r.counters[k], 0, 0))
	}
	for _, k := range sortedKeys(r.gauges) {
		kp := r.keys[k]
		out = append(out, r.readingLocked(kp, TypeGauge, now, r.gauges[k], 0, 0))
	}
	hkeys := make([]string, 0, len(r.histograms))
	for k := range r.histograms {
		hkeys = append(hkeys, k)
	}
	sort.Strings(hkeys)
	for _, k := range hkeys {
		kp := r.keys[k]
		h := r.histograms[k]
		out = append(out, r.readingLocked(kp, TypeHistogram, now, 0, h.count, h.sum))
	}
	return out
}

// Range reads raw recorded points for a metric from the backing
// time-series partition.
func Range(name string, tags map[string]string, from, to time.Time) ([]*tstorage.DataPoint, error) {
	r := current()
	if r == nil {
		return nil, nil
	}
	return r.tsdb.Select(name, labels(tags), from.UnixMilli(), to.UnixMilli())
}

// Close flushes and releases the backing time-series partition.
func Close() error {
	regMu.Lock()
	r := reg
	reg = nil
	regMu.Unlock()
	if r == nil {
		return nil
	}
	return r.tsdb.Close()
}

func (r *registry) readingLocked(kp keyParts, typ string, ts time.Time, value float64, count uint64, sum float64) Reading {
	m := r.metas[kp.name]
	return Reading{
		Name:        kp.name,
		Description: m.description,
		Unit:        m.unit,
		Type:        typ,
		Tags:        kp.tags,
		Value:       value,
		Count:       count,
		Sum:         sum,
		Timestamp:   ts,
	}
}

func (r *registry) insert(name string, tags map[string]string, value float64) {
	err := r.tsdb.InsertRows([]tstorage.Row{{
		Metric: name,
		Labels: labels(tags),
		DataPoint: tstorage.DataPoint{
			Timestamp: time.Now().UnixMilli(),
			Value:     value,
		},
	}})
	if err != nil {
		zap.L().Debug("metrics insert failed", zap.String("metric", name), zap.Error(err))
	}
}

func current() *registry {
	regMu.RLock()
	defer regMu.RUnlock()
	return reg
}

func labels(tags map[string]string) []tstorage.Label {
	if len(tags) == 0 {
		return nil
	}
	out := make([]tstorage.Label, 0, len(tags))
	for _, k := range sortedTagKeys(tags) {
		out = append(out, tstorage.Label{Name: k, Value: tags[k]})
	}
	return out
}

func key(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, k := range sortedTagKeys(tags) {
		fmt.Fprintf(&b, "|%s=%s", k, tags[k])
	}
	return b.String()
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
