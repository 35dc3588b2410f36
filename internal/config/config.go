// Package config loads bizdesk configuration.
//
// Values come from three layers, each overriding the previous one: built-in
// defaults, an optional YAML file (path from --config or BIZDESK_CONFIG), and
// BIZDESK_* environment variables. String values may reference ${VAR} or
// ${VAR:-default} for secrets kept out of the file.
package config

import (
	"bizdesk/internal/blob"
	"bizdesk/internal/core"
	"bizdesk/internal/infra/blob/s3"
	"bizdesk/internal/notify"
	"bizdesk/internal/observability"
	"bizdesk/internal/settings"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "BIZDESK_CONFIG"

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Cascade   CascadeConfig   `yaml:"cascade"`
	Blob      BlobConfig      `yaml:"blob"`
	Mail      notify.Config   `yaml:"mail"`
	Reminders RemindersConfig `yaml:"reminders"`
	Settings  settings.Record `yaml:"settings"`
	Log       LogConfig       `yaml:"log"`

	// Seed loads the demo records into an empty store at startup.
	Seed bool `yaml:"seed"`
}

// HTTPConfig configures the listener and session cookie.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      core.StorageDriver `yaml:"driver"`
	SQLitePath  string             `yaml:"sqlite_path"`
	PostgresDSN string             `yaml:"postgres_dsn"`
}

// CascadeConfig tunes delete behaviour.
type CascadeConfig struct {
	// Transitive extends a client delete to the tasks and bugs of its
	// projects.
	Transitive bool `yaml:"transitive"`
}

// BlobConfig selects where export archives go.
type BlobConfig struct {
	Driver blob.Driver `yaml:"driver"`
	FSRoot string      `yaml:"fs_root"`
	S3     s3.Config   `yaml:"s3"`
	// Retain caps how many export archives are kept; zero keeps all.
	Retain int `yaml:"retain"`
}

// RemindersConfig drives the project reminder scheduler.
type RemindersConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	LeadDays int           `yaml:"lead_days"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string                  `yaml:"level"`
	Format observability.LogFormat `yaml:"format"`
}

// Default returns a configuration that runs with no file: memory storage,
// filesystem blobs, simulated mail and seeded data.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":5000",
			SessionTTL:      24 * time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     core.StorageMemory,
			SQLitePath: "bizdesk.db",
		},
		Blob: BlobConfig{
			Driver: blob.DriverFilesystem,
			FSRoot: "./blobdata",
			S3:     s3.Config{Region: s3.DefaultRegion},
		},
		Mail: notify.Config{
			SMTPPort: "587",
			Timeout:  10 * time.Second,
		},
		Reminders: RemindersConfig{
			Interval: 24 * time.Hour,
			LeadDays: 5,
		},
		Settings: settings.Defaults(),
		Log: LogConfig{
			Level:  "info",
			Format: observability.FormatAuto,
		},
		Seed: true,
	}
}

// Load builds the configuration from path (or BIZDESK_CONFIG when path is
// empty) and the process environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// StorageOptions converts the storage and cascade sections for
// core.OpenPersistentStore.
func (c *Config) StorageOptions() core.StorageConfig {
	return core.StorageConfig{
		Driver:            c.Storage.Driver,
		SQLitePath:        c.Storage.SQLitePath,
		PostgresDSN:       c.Storage.PostgresDSN,
		TransitiveCascade: c.Cascade.Transitive,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c *Config) BlobOptions() blob.Config {
	return blob.Config{Driver: c.Blob.Driver, FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "", core.StorageMemory:
	case core.StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage.driver: %s", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid blob.driver: %s", c.Blob.Driver))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.SessionTTL <= 0 {
		errs = append(errs, errors.New("http.session_ttl must be positive"))
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		errs = append(errs, errors.New("reminders.interval must be positive"))
	}
	if c.Blob.Retain < 0 {
		errs = append(errs, errors.New("blob.retain must not be negative"))
	}
	if c.Reminders.LeadDays < 0 {
		errs = append(errs, errors.New("reminders.lead_days must not be negative"))
	}
	switch c.Log.Format {
	case "", observability.FormatAuto, observability.FormatText, observability.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %s", c.Log.Format))
	}
	return errors.Join(errs...)
}

// applyEnv overrides fields from BIZDESK_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BIZDESK_HTTP_ADDR":          &c.HTTP.Addr,
		"BIZDESK_SQLITE_PATH":        &c.Storage.SQLitePath,
		"BIZDESK_POSTGRES_DSN":       &c.Storage.PostgresDSN,
		"BIZDESK_BLOB_FS_ROOT":       &c.Blob.FSRoot,
		"BIZDESK_S3_BUCKET":          &c.Blob.S3.Bucket,
		"BIZDESK_S3_REGION":          &c.Blob.S3.Region,
		"BIZDESK_S3_ENDPOINT":        &c.Blob.S3.Endpoint,
		"BIZDESK_S3_ACCESS_KEY_ID":   &c.Blob.S3.AccessKeyID,
		"BIZDESK_S3_SECRET_KEY":      &c.Blob.S3.SecretAccessKey,
		"BIZDESK_MAIL_FROM":          &c.Mail.From,
		"BIZDESK_SMTP_HOST":          &c.Mail.SMTPHost,
		"BIZDESK_SMTP_PORT":          &c.Mail.SMTPPort,
		"BIZDESK_SMTP_USER":          &c.Mail.SMTPUser,
		"BIZDESK_SMTP_PASS":          &c.Mail.SMTPPass,
		"BIZDESK_RESEND_API_KEY":     &c.Mail.ResendAPIKey,
		"BIZDESK_LOG_LEVEL":          &c.Log.Level,
		"BIZDESK_NOTIFICATION_EMAIL": &c.Settings.EmailForNotifications,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	if v, ok := lookup("BIZDESK_STORAGE_DRIVER"); ok {
		c.Storage.Driver = core.StorageDriver(v)
	}
	if v, ok := lookup("BIZDESK_BLOB_DRIVER"); ok {
		c.Blob.Driver = blob.Driver(v)
	}
	if v, ok := lookup("BIZDESK_LOG_FORMAT"); ok {
		c.Log.Format = observability.LogFormat(v)
	}

	var errs []error
	bools := map[string]*bool{
		"BIZDESK_SEED":               &c.Seed,
		"BIZDESK_COOKIE_SECURE":      &c.HTTP.CookieSecure,
		"BIZDESK_CASCADE_TRANSITIVE": &c.Cascade.Transitive,
		"BIZDESK_REMINDERS_ENABLED":  &c.Reminders.Enabled,
		"BIZDESK_S3_PATH_STYLE":      &c.Blob.S3.PathStyle,
	}
	for name, dst := range bools {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			*dst = b
		}
	}
	durations := map[string]*time.Duration{
		"BIZDESK_SESSION_TTL":        &c.HTTP.SessionTTL,
		"BIZDESK_MAIL_TIMEOUT":       &c.Mail.Timeout,
		"BIZDESK_REMINDERS_INTERVAL": &c.Reminders.Interval,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			*dst = d
		}
	}
	ints := map[string]*int{
		"BIZDESK_REMINDERS_LEAD_DAYS": &c.Reminders.LeadDays,
		"BIZDESK_EXPORT_RETAIN":       &c.Blob.Retain,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			*dst = n
		}
	}
	return errors.Join(errs...)
}

// expandVariables expands ${VAR} and ${VAR:-default} in fields that commonly
// carry secrets or host-specific paths.
func (c *Config) expandVariables() {
	for _, p := range []*string{
		&c.Storage.SQLitePath,
		&c.Storage.PostgresDSN,
		&c.Blob.FSRoot,
		&c.Blob.S3.AccessKeyID,
		&c.Blob.S3.SecretAccessKey,
		&c.Mail.SMTPPass,
		&c.Mail.ResendAPIKey,
	} {
		*p = expandVars(*p)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
