package app

import (
	"os"
	"time"
	_ "time/tzdata"

	evbus "github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/talkincode/netpulse/config"
	"github.com/talkincode/netpulse/internal/alert"
	"github.com/talkincode/netpulse/internal/console"
	"github.com/talkincode/netpulse/internal/history"
	"github.com/talkincode/netpulse/internal/monitor"
	"github.com/talkincode/netpulse/internal/paths"
	"github.com/talkincode/netpulse/internal/probe"
	"github.com/talkincode/netpulse/internal/resolver"
	"github.com/talkincode/netpulse/internal/telemetry"
	"github.com/talkincode/netpulse/pkg/metrics"
)

// Application wires the monitor core to its collaborators: the config
// resolver, the historical store, the telemetry sink, the console
// display and the ambient cron jobs.
type Application struct {
	appConfig *config.AppConfig
	sched     *cron.Cron
	bus       evbus.Bus
	prober    probe.Prober
	resolver  *resolver.Resolver
	monitor   *monitor.Monitor
	store     *history.Store
	sink      *telemetry.Sink
	display   *console.Display
	notifier  *alert.MailNotifier
}

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Monitor() *monitor.Monitor {
	return a.monitor
}

func (a *Application) Store() *history.Store {
	return a.store
}

func (a *Application) Init() {
	cfg := a.appConfig

	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	a.initLogger()

	// Persistence and telemetry share the layered directory fallback;
	// losing both still leaves the monitor running.
	workdir := cfg.System.Workdir
	if workdir == "" {
		workdir, _ = paths.ResolveDataDir(paths.DefaultLookup(), "netpulse")
	}

	if err := metrics.InitMetrics(workdir); err != nil {
		zap.S().Warn("failed to initialize metrics:", err)
	}
	metrics.Describe("netpulse_cycles_total", "Completed monitoring cycles", "1")
	metrics.Describe("netpulse_probe_latency_ms", "Probe round-trip latency", "ms")
	metrics.Describe("netpulse_probe_failures_total", "Failed probes", "1")

	a.bus = evbus.New()
	a.prober = probe.NewPingProber()
	a.resolver = resolver.New(resolver.Settings{
		RouterAddr:      cfg.Monitor.RouterAddr,
		InternetTarget:  cfg.Monitor.InternetTarget,
		ProbeTimeout:    cfg.ProbeTimeout(),
		FallbackEnabled: cfg.Monitor.FallbackEnabled,
	}, a.prober, nil)

	a.monitor = monitor.New(monitor.Config{
		PingsPerCycle: cfg.Monitor.PingsPerCycle,
		ProbeTimeout:  cfg.ProbeTimeout(),
		Thresholds: monitor.Thresholds{
			ExcellentMs: cfg.Monitor.ExcellentMs,
			GoodMs:      cfg.Monitor.GoodMs,
			DegradedMs:  cfg.Monitor.DegradedMs,
		},
	}, a.resolver, a.prober, a.bus)

	a.store = history.NewStore(workdir, cfg.History.RetentionDays)
	if a.store.Disabled() {
		zap.L().Warn("history persistence disabled, continuing without it")
	}
	a.sink = telemetry.NewSink(workdir, cfg.Telemetry.MaxFileSizeBytes, metrics.RunID())
	a.display = console.NewDisplay()

	a.notifier = alert.NewMailNotifier(cfg.Alert)
	if a.notifier.Enabled() {
		a.monitor.OnChange(a.notifier.NotifyChange)
	}

	a.initJob()
}

func (a *Application) initLogger() {
	cfg := a.appConfig

	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.System.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stderr),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

// Release flushes and closes application resources.
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.resolver != nil {
		a.resolver.Close()
	}
	if a.sink != nil {
		a.sink.Export(metrics.Snapshot())
		_ = a.sink.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
