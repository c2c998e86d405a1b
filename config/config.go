package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Workdir  string `yaml:"workdir"`
	Location string `yaml:"location"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode"` // development or production
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type MonitorConfig struct {
	RouterAddr      string `yaml:"router_addr"`     // explicit address or "auto"
	InternetTarget  string `yaml:"internet_target"` // primary WAN probe target
	ProbeTimeoutMs  int    `yaml:"probe_timeout_ms"`
	IntervalSecs    int    `yaml:"interval_secs"`
	PingsPerCycle   int    `yaml:"pings_per_cycle"`
	ExcellentMs     int64  `yaml:"excellent_ms"`
	GoodMs          int64  `yaml:"good_ms"`
	DegradedMs      int64  `yaml:"degraded_ms"`
	FallbackEnabled bool   `yaml:"fallback_enabled"`
}

type HistoryConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

type TelemetryConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
}

type AlertConfig struct {
	SmtpHost     string `yaml:"smtp_host"`
	SmtpPort     int    `yaml:"smtp_port"`
	SmtpUser     string `yaml:"smtp_user"`
	SmtpPassword string `yaml:"smtp_password"`
	MailFrom     string `yaml:"mail_from"`
	MailTo       string `yaml:"mail_to"`
}

type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Logger    LogConfig       `yaml:"logger"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Alert     AlertConfig     `yaml:"alert"`
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c *AppConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.Monitor.ProbeTimeoutMs) * time.Millisecond
}

// CycleInterval returns the inter-cycle sleep as a duration.
func (c *AppConfig) CycleInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSecs) * time.Second
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Location: "UTC",
		},
		Logger: LogConfig{
			Mode: "development",
		},
		Monitor: MonitorConfig{
			RouterAddr:      "auto",
			InternetTarget:  "1.1.1.1",
			ProbeTimeoutMs:  2000,
			IntervalSecs:    30,
			PingsPerCycle:   3,
			ExcellentMs:     20,
			GoodMs:          100,
			DegradedMs:      200,
			FallbackEnabled: true,
		},
		History: HistoryConfig{
			RetentionDays: 30,
		},
		Telemetry: TelemetryConfig{
			MaxFileSizeBytes: 25 * 1024 * 1024,
		},
	}
}

// LoadConfig reads the YAML config file when present, applies defaults
// for anything unset, and finally applies NETPULSE_* environment
// overrides.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig()
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	setEnvValue("NETPULSE_WORKDIR", &cfg.System.Workdir)
	setEnvValue("NETPULSE_ROUTER_ADDR", &cfg.Monitor.RouterAddr)
	setEnvValue("NETPULSE_INTERNET_TARGET", &cfg.Monitor.InternetTarget)
	setEnvIntValue("NETPULSE_INTERVAL_SECS", &cfg.Monitor.IntervalSecs)
	setEnvIntValue("NETPULSE_PINGS_PER_CYCLE", &cfg.Monitor.PingsPerCycle)
	setEnvIntValue("NETPULSE_PROBE_TIMEOUT_MS", &cfg.Monitor.ProbeTimeoutMs)
	setEnvIntValue("NETPULSE_RETENTION_DAYS", &cfg.History.RetentionDays)
	setEnvBoolValue("NETPULSE_DEBUG", &cfg.System.Debug)
	setEnvBoolValue("NETPULSE_FALLBACK_ENABLED", &cfg.Monitor.FallbackEnabled)
	return cfg
}

func setEnvValue(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok {
		*val = v
	}
}

func setEnvIntValue(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToInt(v)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToBool(v)
	}
}
