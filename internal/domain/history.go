package domain

import "time"

// Target type discriminator for probe sample rows.
const (
	TargetRouter   = "router"
	TargetInternet = "internet"
)

// ProbeSample is one raw probe outcome, appended every cycle.
type ProbeSample struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Target      string    `json:"target"`
	TargetType  string    `gorm:"index" json:"target_type"` // router/internet
	Success     bool      `json:"success"`
	LatencyMs   int64     `json:"latency_ms"`
	ErrorDetail string    `json:"error_detail"`
	Ts          time.Time `gorm:"index:idx_probe_sample_ts,sort:desc" json:"ts"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName Specify table name
func (ProbeSample) TableName() string {
	return "probe_sample"
}

// CycleSummary is the per-cycle classification record.
type CycleSummary struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Health            string    `json:"health"`
	Message           string    `json:"message"`
	RouterLatencyMs   int64     `json:"router_latency_ms"`   // -1 when no router result
	InternetLatencyMs int64     `json:"internet_latency_ms"` // -1 when internet batch failed
	Ts                time.Time `gorm:"index:idx_cycle_summary_ts,sort:desc" json:"ts"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName Specify table name
func (CycleSummary) TableName() string {
	return "cycle_summary"
}
