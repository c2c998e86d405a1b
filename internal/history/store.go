package history

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talkincode/netpulse/internal/domain"
	"github.com/talkincode/netpulse/internal/monitor"
	"github.com/talkincode/netpulse/internal/probe"
)

// pruneProbability is the chance that a successful write also prunes
// expired rows, amortizing retention cleanup without a scheduler.
const pruneProbability = 0.01

// Store appends every cycle's results to an embedded SQLite database
// and serves bucketed trend queries. Storage trouble never reaches the
// monitoring loop: writes absorb errors and a store without a writable
// directory runs disabled.
type Store struct {
	path          string
	disabled      bool
	retentionDays int

	migrateMu sync.Mutex
	migrated  bool
}

// NewStore builds a store rooted at dataDir. An empty dataDir disables
// persistence entirely; the monitor keeps running without history.
func NewStore(dataDir string, retentionDays int) *Store {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if dataDir == "" {
		return &Store{disabled: true, retentionDays: retentionDays}
	}
	return &Store{
		path:          filepath.Join(dataDir, "netpulse.db"),
		retentionDays: retentionDays,
	}
}

// Disabled reports whether persistence is off for this process.
func (s *Store) Disabled() bool {
	return s.disabled
}

// RecordCycle appends the cycle's summary and its constituent probe
// results. All storage errors are logged and swallowed.
func (s *Store) RecordCycle(ctx context.Context, status *monitor.Status) {
	if s.disabled || status == nil {
		return
	}

	db, closeDB, err := s.open(ctx)
	if err != nil {
		zap.L().Warn("history: open failed, cycle not recorded", zap.Error(err))
		return
	}
	defer closeDB()

	rows := make([]domain.ProbeSample, 0, 2)
	if status.Router != nil {
		rows = append(rows, sampleRow(domain.TargetRouter, *status.Router))
	}
	rows = append(rows, sampleRow(domain.TargetInternet, status.Internet))

	if err := db.Create(&rows).Error; err != nil {
		zap.L().Warn("history: sample write failed", zap.Error(err))
		return
	}

	summary := domain.CycleSummary{
		Health:            status.Health.String(),
		Message:           status.Message,
		RouterLatencyMs:   resultLatency(status.Router),
		InternetLatencyMs: resultLatency(&status.Internet),
		Ts:                status.Timestamp,
	}
	if err := db.Create(&summary).Error; err != nil {
		zap.L().Warn("history: summary write failed", zap.Error(err))
		return
	}

	if rand.Float64() < pruneProbability {
		s.pruneLocked(db)
	}
}

// Query loads raw samples in [from, to) and aggregates them into
// buckets of the requested granularity, ordered by period start. A
// window without samples yields an empty slice.
func (s *Store) Query(ctx context.Context, from, to time.Time, g Granularity) ([]Bucket, error) {
	if s.disabled {
		return nil, nil
	}
	db, closeDB, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	var samples []domain.ProbeSample
	err = db.Where("ts >= ? AND ts < ?", from, to).
		Order("ts ASC").
		Find(&samples).Error
	if err != nil {
		return nil, errors.Wrap(err, "history: query samples")
	}
	return bucketize(samples, g), nil
}

// RecentSamples returns the newest count raw samples across all target
// types, newest first.
func (s *Store) RecentSamples(ctx context.Context, count int) ([]domain.ProbeSample, error) {
	if s.disabled || count <= 0 {
		return nil, nil
	}
	db, closeDB, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	var samples []domain.ProbeSample
	err = db.Order("ts DESC").Limit(count).Find(&samples).Error
	if err != nil {
		return nil, errors.Wrap(err, "history: recent samples")
	}
	return samples, nil
}

// Prune deletes rows older than the retention horizon.
func (s *Store) Prune(ctx context.Context) error {
	if s.disabled {
		return nil
	}
	db, closeDB, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	s.pruneLocked(db)
	return nil
}

func (s *Store) pruneLocked(db *gorm.DB) {
	horizon := time.Now().UTC().Add(-time.Duration(s.retentionDays) * 24 * time.Hour)
	if err := db.Where("ts < ?", horizon).Delete(&domain.ProbeSample{}).Error; err != nil {
		zap.L().Warn("history: sample prune failed", zap.Error(err))
	}
	if err := db.Where("ts < ?", horizon).Delete(&domain.CycleSummary{}).Error; err != nil {
		zap.L().Warn("history: summary prune failed", zap.Error(err))
	}
}

// open establishes a short-lived connection; the handle is never held
// across calls. Schema creation happens lazily on first use.
func (s *Store) open(ctx context.Context) (*gorm.DB, func(), error) {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "history: open database")
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	s.migrateMu.Lock()
	if !s.migrated {
		if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
			s.migrateMu.Unlock()
			closeDB()
			return nil, nil, errors.Wrap(err, "history: migrate schema")
		}
		s.migrated = true
	}
	s.migrateMu.Unlock()
	return db.WithContext(ctx), closeDB, nil
}

func sampleRow(targetType string, r probe.Result) domain.ProbeSample {
	latency := int64(0)
	if r.Success {
		latency = r.RTTMs
	}
	return domain.ProbeSample{
		Target:      r.Target,
		TargetType:  targetType,
		Success:     r.Success,
		LatencyMs:   latency,
		ErrorDetail: r.ErrorDetail,
		Ts:          r.Timestamp,
	}
}

func resultLatency(r *probe.Result) int64 {
	if r == nil || !r.Success {
		return -1
	}
	return r.RTTMs
}
