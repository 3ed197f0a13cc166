package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reservly/pulsed/internal/alert"
	"github.com/reservly/pulsed/internal/api"
	"github.com/reservly/pulsed/internal/collector"
	"github.com/reservly/pulsed/internal/config"
	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/notify"
	"github.com/reservly/pulsed/internal/sla"
	"github.com/reservly/pulsed/internal/source"
	"github.com/reservly/pulsed/internal/store"
	"github.com/reservly/pulsed/internal/stream"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "start":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStart()
	case "stop":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStop()
	case "status":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStatus()
	case "run":
		// Foreground mode (also used internally by the daemon child)
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdRun()
	case "version":
		fmt.Printf("pulsed %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `pulsed — booking platform monitoring and alerting daemon (%s)

Usage:
  %s <command> [flags]

Commands:
  start          Start daemon (background)
  stop           Stop daemon
  status         Show daemon status
  run            Run in foreground
  version        Print version

Flags:
  -config PATH   Config file path (default: config.yaml)
  -listen ADDR   Listen address (default: 127.0.0.1:9480)
  -db PATH       SQLite database path
  -redis ADDR    Redis address for platform counters
  -nats URL      NATS URL for alert notifications
  -pid-file P    PID file path
  -log-file P    Log file path

Examples:
  %s start
  %s start -config /etc/pulsed/config.yaml
  %s stop
  %s status
  %s run
`, version, exe, exe, exe, exe, exe, exe)
}

func newLogger() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if os.Getenv("PULSED_DEBUG") != "" {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		level,
	)
	return zap.New(core)
}

func cmdRun() {
	log := newLogger()
	defer log.Sync()

	cfg := config.Load(func(format string, args ...interface{}) {
		log.Sugar().Infof(format, args...)
	})

	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	// Durable writes go through the retry worker so slow disks never stall
	// collection or alert transitions.
	writer := store.NewRetryWriter(db, 3, 200*time.Millisecond, 256, log.Named("store"))
	writer.Start(ctx)

	// Metric sources: system metrics always come from the host; the other
	// three domains need the platform's Redis counters.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = source.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, platform domains will report stale",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			rdb = nil
		}
	}
	var paySrc source.PaymentSource
	var secSrc source.SecuritySource
	var bizSrc source.BusinessSource
	if rdb != nil {
		paySrc = source.NewPaymentSource(rdb)
		secSrc = source.NewSecuritySource(rdb)
		bizSrc = source.NewBusinessSource(rdb)
	}
	sources := source.NewRegistry(
		paySrc,
		source.NewSystemSource(rdb, "/"),
		secSrc,
		bizSrc,
		time.Duration(cfg.Collect.FetchTimeoutMs)*time.Millisecond,
		log.Named("source"),
	)

	// Alert registry with its downstream fan-out.
	registry := alert.NewRegistry(
		cfg.Alerts.RealertDeltaPct,
		time.Duration(cfg.Alerts.ResolvedGraceMin)*time.Minute,
		log.Named("alert"),
	)

	hub := stream.NewHub(
		time.Duration(cfg.Stream.WriteTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Stream.MinIntervalSec)*time.Second,
		cfg.Stream.MaxDeliveryFailures,
		log.Named("stream"),
	)
	defer hub.Shutdown()

	dispatchers := []notify.Dispatcher{notify.NewLogDispatcher(log.Named("notify"))}
	if cfg.NATS.URL != "" {
		nd, err := notify.NewNATSDispatcher(cfg.NATS.URL, log.Named("nats"))
		if err != nil {
			log.Warn("nats unavailable, notifications go to the log only", zap.Error(err))
		} else {
			defer nd.Close()
			dispatchers = append(dispatchers, nd)
		}
	}
	notifier := notify.NewNotifier(256, log.Named("notify"), dispatchers...)
	notifier.Start(ctx)

	registry.SetPublisher(func(ev model.AlertEvent) {
		hub.BroadcastAlert(ev)
		writer.SaveAlert(ev.Alert)
		notifier.Submit(ev)
	})

	// Persistence failures feed back into the same alert stream.
	writer.SetAlerter(func(b model.Breach) { registry.Open(b) })

	// Collector loop.
	rules := cfg.Alerts.Rules
	if len(rules) == 0 {
		rules = alert.DefaultRules()
		log.Info("no alert rules configured, using defaults", zap.Int("count", len(rules)))
	}
	samples := collector.NewSampleStore(
		cfg.Collect.SampleWindow,
		time.Duration(cfg.Collect.SampleMaxAgeMin)*time.Minute,
	)
	loop := collector.NewLoop(sources, samples, rules, registry,
		time.Duration(cfg.Collect.IntervalSec)*time.Second,
		cfg.Collect.QueueSize,
		log.Named("collector"),
	)
	loop.SetBroadcast(hub.BroadcastSnapshot)
	loop.SetPersist(writer.SaveSnapshot)
	loop.Start(ctx)

	// Escalation monitor.
	monitor := alert.NewMonitor(registry, cfg.Escalation, log.Named("escalation"))
	monitor.Start(ctx)

	// SLA reports.
	agg := sla.NewAggregator(db, cfg.SLA.TargetAvailability, log.Named("sla"))
	sla.NewScheduler(agg, writer, cfg.SLA.DailyRunHour, log.Named("sla")).Start(ctx)

	go runRetentionPurge(ctx, db, cfg.Collect.RetentionHours, log.Named("purge"))

	router := api.NewRouter(api.Deps{
		Samples:  samples,
		Store:    db,
		Writer:   writer,
		Registry: registry,
		Sources:  sources,
		SLA:      agg,
		WS:       stream.NewWSHandler(hub, log.Named("ws")),
		Log:      log.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("pulsed listening",
			zap.String("version", version),
			zap.String("addr", cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Shutdown(shutCtx)
	loop.Stop()
	writer.Wait()

	os.Remove(cfg.PidFile)
	log.Info("goodbye")
}

func runRetentionPurge(ctx context.Context, db *store.Store, hours int, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeSnapshotsOlderThan(hours)
			if err != nil {
				log.Error("purge failed", zap.Error(err))
			} else if n > 0 {
				log.Info("purged old snapshots", zap.Int64("removed", n))
			}
		}
	}
}

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s", path)
	}
	return pid, nil
}
