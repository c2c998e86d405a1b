package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/talkincode/netpulse/config"
	"github.com/talkincode/netpulse/internal/app"
	"github.com/talkincode/netpulse/internal/history"
	"github.com/talkincode/netpulse/internal/paths"
)

var (
	conffile = flag.String("c", "netpulse.yml", "config file path")
)

func main() {
	flag.Parse()

	if flag.NArg() > 0 && flag.Arg(0) == "report" {
		if err := runReport(flag.Args()[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init()
	defer application.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.RunMonitorLoop(ctx); err != nil && ctx.Err() == nil {
		zap.L().Error("monitor loop exited", zap.Error(err))
		os.Exit(1)
	}
}

// runReport prints bucketed history for a time window, optionally as CSV.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var (
		cfile   = fs.String("c", "netpulse.yml", "config file path")
		from    = fs.String("from", "24 hours ago", "window start (flexible format)")
		to      = fs.String("to", "", "window end, defaults to now")
		gran    = fs.String("granularity", "hour", "bucket granularity: minute, hour or day")
		csvPath = fs.String("csv", "", "write buckets as CSV to this file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fromTime, err := parseWhen(*from, time.Now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("parse -from: %w", err)
	}
	toTime, err := parseWhen(*to, time.Now())
	if err != nil {
		return fmt.Errorf("parse -to: %w", err)
	}
	granularity, err := history.ParseGranularity(*gran)
	if err != nil {
		return err
	}

	cfg := config.LoadConfig(*cfile)
	workdir := cfg.System.Workdir
	if workdir == "" {
		workdir, _ = paths.ResolveDataDir(paths.DefaultLookup(), "netpulse")
	}
	store := history.NewStore(workdir, cfg.History.RetentionDays)
	if store.Disabled() {
		return fmt.Errorf("no history database available")
	}

	buckets, err := store.Query(context.Background(), fromTime, toTime, granularity)
	if err != nil {
		return err
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return gocsv.Marshal(&buckets, f)
	}

	if len(buckets) == 0 {
		fmt.Println("no samples in window")
		return nil
	}
	fmt.Printf("%-20s %8s %8s %8s %8s %8s\n",
		"period", "avg(ms)", "min(ms)", "max(ms)", "loss(%)", "samples")
	for _, b := range buckets {
		fmt.Printf("%-20s %8.1f %8d %8d %8.1f %8d\n",
			b.PeriodStart.Format("2006-01-02 15:04"),
			b.AvgLatencyMs, b.MinLatencyMs, b.MaxLatencyMs,
			b.PacketLossPercent, b.SampleCount)
	}
	return nil
}

// parseWhen accepts both strict and loose timestamps, plus a couple of
// relative forms like "24 hours ago".
func parseWhen(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d %s ago", &n, &unit); err == nil {
		switch unit {
		case "minute", "minutes":
			return time.Now().Add(-time.Duration(n) * time.Minute), nil
		case "hour", "hours":
			return time.Now().Add(-time.Duration(n) * time.Hour), nil
		case "day", "days":
			return time.Now().Add(-time.Duration(n) * 24 * time.Hour), nil
		}
	}
	return dateparse.ParseLocal(s)
}
