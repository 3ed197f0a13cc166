package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reservly/pulsed/internal/model"
)

// Config holds the full daemon configuration.
type Config struct {
	Listen  string `yaml:"listen"`
	DBPath  string `yaml:"database"`
	PidFile string `yaml:"pid_file"`
	LogFile string `yaml:"log_file"`

	Redis RedisConfig `yaml:"redis"`
	NATS  NATSConfig  `yaml:"nats"`

	Collect    CollectConfig    `yaml:"collect"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Escalation EscalationConfig `yaml:"escalation"`
	Stream     StreamConfig     `yaml:"stream"`
	SLA        SLAConfig        `yaml:"sla"`

	// Parsed from command line (not YAML)
	ConfigPath string `yaml:"-"`
}

// RedisConfig points at the platform counter store. Leave Addr empty to run
// without the payment/security/business sources.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig points at the notification bus. Leave URL empty to log
// notifications instead of publishing them.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// CollectConfig tunes the collector loop and sample store. SampleWindow
// bounds the snapshots kept in memory; RetentionHours bounds the persisted
// history.
type CollectConfig struct {
	IntervalSec     int `yaml:"interval_sec"`
	FetchTimeoutMs  int `yaml:"fetch_timeout_ms"`
	QueueSize       int `yaml:"queue_size"`
	SampleWindow    int `yaml:"sample_window"`
	SampleMaxAgeMin int `yaml:"sample_max_age_min"`
	RetentionHours  int `yaml:"retention_hours"`
}

// AlertsConfig holds threshold rules and registry tunables.
type AlertsConfig struct {
	Rules            []model.ThresholdRule `yaml:"rules"`
	RealertDeltaPct  float64               `yaml:"realert_delta_pct"`
	ResolvedGraceMin int                   `yaml:"resolved_grace_min"`
}

// EscalationConfig tunes the escalation monitor. Patience is how long an
// active alert of a given severity may sit unacknowledged before its first
// escalation; cooldown spaces repeat escalations.
type EscalationConfig struct {
	IntervalSec int `yaml:"interval_sec"`
	CooldownMin int `yaml:"cooldown_min"`
	Patience    struct {
		CriticalMin int `yaml:"critical_min"`
		HighMin     int `yaml:"high_min"`
		MediumMin   int `yaml:"medium_min"`
		LowMin      int `yaml:"low_min"`
	} `yaml:"patience"`
}

// PatienceFor returns the escalation patience for a severity.
func (e EscalationConfig) PatienceFor(s model.AlertSeverity) time.Duration {
	switch s {
	case model.SeverityCritical:
		return time.Duration(e.Patience.CriticalMin) * time.Minute
	case model.SeverityHigh:
		return time.Duration(e.Patience.HighMin) * time.Minute
	case model.SeverityMedium:
		return time.Duration(e.Patience.MediumMin) * time.Minute
	default:
		return time.Duration(e.Patience.LowMin) * time.Minute
	}
}

// StreamConfig tunes observer delivery.
type StreamConfig struct {
	WriteTimeoutMs      int `yaml:"write_timeout_ms"`
	MaxDeliveryFailures int `yaml:"max_delivery_failures"`
	MinIntervalSec      int `yaml:"min_interval_sec"`
}

// SLAConfig holds report targets and the daily generation schedule.
type SLAConfig struct {
	TargetAvailability float64 `yaml:"target_availability"`
	DailyRunHour       int     `yaml:"daily_run_hour"` // UTC hour for the scheduled daily report
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:     "127.0.0.1:9480",
		DBPath:     "pulsed.db",
		PidFile:    "pulsed.pid",
		LogFile:    "pulsed.log",
		ConfigPath: "config.yaml",
	}
	cfg.Collect = CollectConfig{
		IntervalSec:     15,
		FetchTimeoutMs:  3000,
		QueueSize:       8,
		SampleWindow:    960,
		SampleMaxAgeMin: 240,
		RetentionHours:  24 * 35,
	}
	cfg.Alerts = AlertsConfig{
		RealertDeltaPct:  10,
		ResolvedGraceMin: 15,
	}
	cfg.Escalation.IntervalSec = 60
	cfg.Escalation.CooldownMin = 10
	cfg.Escalation.Patience.CriticalMin = 5
	cfg.Escalation.Patience.HighMin = 15
	cfg.Escalation.Patience.MediumMin = 30
	cfg.Escalation.Patience.LowMin = 60
	cfg.Stream = StreamConfig{
		WriteTimeoutMs:      2000,
		MaxDeliveryFailures: 3,
		MinIntervalSec:      1,
	}
	cfg.SLA = SLAConfig{
		TargetAvailability: 99.9,
		DailyRunHour:       0,
	}
	return cfg
}

// Load reads configuration with priority: defaults < config.yaml < env vars < flags.
// It expects os.Args to already have the subcommand stripped (if any).
func Load(logf func(format string, args ...interface{})) *Config {
	cfg := DefaultConfig()

	// 1) Pre-scan for -config flag before parsing (so we know which file to read)
	configPath := cfg.ConfigPath
	for i, arg := range os.Args[1:] {
		if arg == "-config" || arg == "--config" {
			if i+1 < len(os.Args)-1 {
				configPath = os.Args[i+2]
			}
		} else if strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config=") {
			configPath = strings.SplitN(arg, "=", 2)[1]
		}
	}

	// 2) Load YAML config file
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			logf("[config] warning: failed to parse %s: %v", configPath, err)
		} else {
			logf("[config] loaded %s", configPath)
		}
	}
	cfg.ConfigPath = configPath

	// 3) Environment variables override YAML
	if v := os.Getenv("PULSED_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PULSED_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PULSED_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PULSED_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}

	// 4) Flags override everything
	flag.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to config.yaml")
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address (host:port)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "PID file path")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flag.StringVar(&cfg.Redis.Addr, "redis", cfg.Redis.Addr, "Redis address for platform counters")
	flag.StringVar(&cfg.NATS.URL, "nats", cfg.NATS.URL, "NATS URL for alert notifications")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logf("[config] warning: %v, falling back to defaults for the offending value", err)
	}
	return cfg
}

// Validate normalizes out-of-range tunables in place and reports the first
// value that had to be corrected.
func (c *Config) Validate() error {
	var firstErr error
	clamp := func(v *int, min int, name string) {
		if *v < min {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s must be >= %d, got %d", name, min, *v)
			}
			*v = min
		}
	}
	clamp(&c.Collect.IntervalSec, 1, "collect.interval_sec")
	clamp(&c.Collect.FetchTimeoutMs, 100, "collect.fetch_timeout_ms")
	clamp(&c.Collect.QueueSize, 1, "collect.queue_size")
	clamp(&c.Collect.SampleWindow, 1, "collect.sample_window")
	clamp(&c.Escalation.IntervalSec, 1, "escalation.interval_sec")
	clamp(&c.Stream.MaxDeliveryFailures, 1, "stream.max_delivery_failures")
	clamp(&c.Stream.MinIntervalSec, 1, "stream.min_interval_sec")
	if c.SLA.TargetAvailability <= 0 || c.SLA.TargetAvailability > 100 {
		if firstErr == nil {
			firstErr = fmt.Errorf("sla.target_availability must be in (0,100], got %v", c.SLA.TargetAvailability)
		}
		c.SLA.TargetAvailability = 99.9
	}
	return firstErr
}
