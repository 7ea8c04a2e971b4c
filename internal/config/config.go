package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "IOTGUARD_"

// Config holds all application configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	GRPCPort int    `yaml:"grpc_port"`
	Debug    bool   `yaml:"debug"`
	Trace    bool   `yaml:"trace"`

	Database  DatabaseConfig `yaml:"database"`
	RulesPath string         `yaml:"rules_path"`
	Probe     ProbeConfig    `yaml:"probe"`
	Model     ModelConfig    `yaml:"model"`
	NATS      NATSConfig     `yaml:"nats"`
	Slack     SlackConfig    `yaml:"slack"`

	AdminUser            string   `yaml:"admin_user"`
	AllowedOrigins       []string `yaml:"allowed_origins"`
	IdempotencyCacheSize int      `yaml:"idempotency_cache_size"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection string
	Debug  bool   `yaml:"debug"`
}

type ProbeConfig struct {
	Kind         string        `yaml:"kind"` // nmap, shodan or mock
	NmapPath     string        `yaml:"nmap_path"`
	NmapArgs     []string      `yaml:"nmap_args"`
	ShodanKey    string        `yaml:"shodan_key"`
	ShodanURL    string        `yaml:"shodan_url"`
	MockScenario string        `yaml:"mock_scenario"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    int           `yaml:"rate_limit"` // scans per user per minute
}

type ModelConfig struct {
	MinSamples      int    `yaml:"min_samples"`
	MaxDepth        int    `yaml:"max_depth"`
	Seed            int64  `yaml:"seed"`
	RetrainSchedule string `yaml:"retrain_schedule"` // 5-field cron, empty disables
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:     ":8080",
		GRPCPort: 9000,
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   getDefaultDBPath(),
		},
		Probe: ProbeConfig{
			Kind:         "nmap",
			NmapPath:     "nmap",
			NmapArgs:     []string{"-sV"},
			MockScenario: "random",
			Timeout:      2 * time.Minute,
			RateLimit:    10,
		},
		Model: ModelConfig{
			MinSamples:      5,
			MaxDepth:        3,
			Seed:            42,
			RetrainSchedule: "0 3 * * *",
		},
		NATS:                 NATSConfig{Subject: "iotguard.alerts.technician"},
		AdminUser:            "admin",
		IdempotencyCacheSize: 1024,
	}
}

// Load builds the configuration for args (without the program name).
// Precedence: defaults < YAML file < .env file < IOTGUARD_* environment < flags.
func Load(args []string) (*Config, error) {
	// First pass only discovers where the file sources live.
	var src sources
	pre := flag.NewFlagSet("iotguard", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	bindFlags(pre, Default(), &src)
	if err := pre.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if src.configPath == "" {
		src.configPath = os.Getenv(envPrefix + "CONFIG")
	}
	if src.configPath != "" {
		if err := cfg.loadYAML(src.configPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(src.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", src.envFile, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Second pass: explicitly set flags win over everything above.
	fs := flag.NewFlagSet("iotguard", flag.ContinueOnError)
	bindFlags(fs, cfg, &src)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type sources struct {
	configPath string
	envFile    string
}

// stringList is a flag.Value over a whitespace separated list.
type stringList struct{ dst *[]string }

func (s stringList) String() string {
	if s.dst == nil {
		return ""
	}
	return strings.Join(*s.dst, " ")
}

func (s stringList) Set(v string) error {
	*s.dst = strings.Fields(v)
	return nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config, src *sources) {
	fs.StringVar(&src.configPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&src.envFile, "env-file", ".env", "Path to .env file")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc", cfg.GRPCPort, "gRPC health server port (0 disables)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Export OpenTelemetry spans to stdout")

	fs.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "Database driver (sqlite|postgres)")
	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "Path to SQLite database")
	fs.StringVar(&cfg.Database.DSN, "db-dsn", cfg.Database.DSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.RulesPath, "rules", cfg.RulesPath, "Risk rule table YAML (empty uses the built-in table)")

	fs.StringVar(&cfg.Probe.Kind, "probe", cfg.Probe.Kind, "Probe (nmap|shodan|mock)")
	fs.StringVar(&cfg.Probe.NmapPath, "nmap-path", cfg.Probe.NmapPath, "Path to nmap binary")
	fs.Var(stringList{&cfg.Probe.NmapArgs}, "nmap-args", "Extra nmap arguments")
	fs.StringVar(&cfg.Probe.ShodanKey, "shodan-key", cfg.Probe.ShodanKey, "Shodan API key")
	fs.StringVar(&cfg.Probe.MockScenario, "mock-scenario", cfg.Probe.MockScenario, "Mock probe scenario")
	fs.DurationVar(&cfg.Probe.Timeout, "scan-timeout", cfg.Probe.Timeout, "Per-scan timeout")
	fs.IntVar(&cfg.Probe.RateLimit, "scan-rate", cfg.Probe.RateLimit, "Scans per user per minute (0 disables)")

	fs.IntVar(&cfg.Model.MinSamples, "min-samples", cfg.Model.MinSamples, "Minimum labeled ports to train the risk model")
	fs.IntVar(&cfg.Model.MaxDepth, "max-depth", cfg.Model.MaxDepth, "Decision tree depth")
	fs.Int64Var(&cfg.Model.Seed, "seed", cfg.Model.Seed, "Training seed")
	fs.StringVar(&cfg.Model.RetrainSchedule, "retrain", cfg.Model.RetrainSchedule, "Retrain cron schedule (empty disables)")

	fs.StringVar(&cfg.NATS.URL, "nats", cfg.NATS.URL, "NATS server URL for alert publishing")
	fs.StringVar(&cfg.Slack.Channel, "slack-channel", cfg.Slack.Channel, "Slack channel for technician alerts")
	fs.StringVar(&cfg.AdminUser, "admin", cfg.AdminUser, "Account provisioned as admin at startup")
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.Addr, "ADDR")
	errs = append(errs, setInt(&c.GRPCPort, "GRPC_PORT"))
	errs = append(errs, setBool(&c.Debug, "DEBUG"))
	errs = append(errs, setBool(&c.Trace, "TRACE"))

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Database.DSN, "DB_DSN")
	errs = append(errs, setBool(&c.Database.Debug, "DB_DEBUG"))
	setString(&c.RulesPath, "RULES_PATH")

	setString(&c.Probe.Kind, "PROBE")
	setString(&c.Probe.NmapPath, "NMAP_PATH")
	if v, ok := os.LookupEnv(envPrefix + "NMAP_ARGS"); ok {
		c.Probe.NmapArgs = strings.Fields(v)
	}
	setString(&c.Probe.ShodanKey, "SHODAN_KEY")
	setString(&c.Probe.ShodanURL, "SHODAN_URL")
	setString(&c.Probe.MockScenario, "MOCK_SCENARIO")
	errs = append(errs, setDuration(&c.Probe.Timeout, "SCAN_TIMEOUT"))
	errs = append(errs, setInt(&c.Probe.RateLimit, "SCAN_RATE"))

	errs = append(errs, setInt(&c.Model.MinSamples, "MIN_SAMPLES"))
	errs = append(errs, setInt(&c.Model.MaxDepth, "MAX_DEPTH"))
	if v, ok := os.LookupEnv(envPrefix + "SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", envPrefix, err))
		} else {
			c.Model.Seed = n
		}
	}
	setString(&c.Model.RetrainSchedule, "RETRAIN_SCHEDULE")

	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.NATS.Subject, "NATS_SUBJECT")
	setString(&c.Slack.Token, "SLACK_TOKEN")
	setString(&c.Slack.Channel, "SLACK_CHANNEL")
	setString(&c.AdminUser, "ADMIN_USER")
	if v, ok := os.LookupEnv(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

// Validate rejects combinations the application cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("sqlite database path is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Probe.Kind {
	case "nmap", "mock":
	case "shodan":
		if c.Probe.ShodanKey == "" {
			return errors.New("shodan probe requires an API key")
		}
	default:
		return fmt.Errorf("unsupported probe %q", c.Probe.Kind)
	}
	if c.Probe.Timeout <= 0 {
		return errors.New("scan timeout must be positive")
	}
	if c.Model.MinSamples <= 0 || c.Model.MaxDepth <= 0 {
		return errors.New("model min samples and max depth must be positive")
	}
	if c.Slack.Token != "" && c.Slack.Channel == "" {
		return errors.New("slack token set without a channel")
	}
	if c.AdminUser == "" {
		return errors.New("admin user cannot be empty")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.DSN
	}
	return c.Database.Path
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

func setBool(dst *bool, key string) error {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = b
	}
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("Could not get user home directory, using current dir", "error", err)
		return "iotguard.db"
	}

	dir := filepath.Join(home, ".iotguard")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Could not create .iotguard directory, using current dir", "error", err)
		return "iotguard.db"
	}

	return filepath.Join(dir, "iotguard.db")
}
