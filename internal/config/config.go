package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for xb.
type Config struct {
	WorkDir    string           `toml:"work_dir"`
	RestoreDir string           `toml:"restore_dir"`
	LogDir     string           `toml:"log_dir"`
	ArchiveExt string           `toml:"archive_ext"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Retention  RetentionConfig  `toml:"retention"`
	Store      StoreConfig      `toml:"store"`
	Engine     EngineConfig     `toml:"engine"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Liveness   LivenessConfig   `toml:"liveness"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ScheduleConfig controls when ticks fire. Cron takes precedence over
// Interval when both are set.
type ScheduleConfig struct {
	Interval   string `toml:"interval,omitempty"` // e.g. "1h", "30m"
	Cron       string `toml:"cron,omitempty"`     // five-field cron or "@hourly"
	RunAtStart bool   `toml:"run_at_start"`
}

// RetentionConfig controls the age-based sweep.
type RetentionConfig struct {
	Window string `toml:"window"` // e.g. "7d", "168h"; "0" disables
	Strict bool   `toml:"strict"`
}

// StoreConfig represents configuration for the archive store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "s3", "filesystem" or "memory"

	// S3-specific fields (only used when Type == "s3")
	Bucket    string `toml:"bucket,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Region    string `toml:"region,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	PathStyle bool   `toml:"path_style,omitempty"`
	ProxyURL  string `toml:"proxy_url,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`
}

// EngineConfig describes how to invoke the backup engine.
type EngineConfig struct {
	Binary           string   `toml:"binary"`
	User             string   `toml:"user,omitempty"`
	Password         string   `toml:"password,omitempty"`
	Host             string   `toml:"host,omitempty"`
	Port             int      `toml:"port,omitempty"`
	Socket           string   `toml:"socket,omitempty"`
	ExtraArgs        []string `toml:"extra_args,omitempty"`
	CompletionMarker string   `toml:"completion_marker"`
	DataDir          string   `toml:"datadir,omitempty"` // copy-back target for restore --activate
}

// EncryptionConfig holds paths to the age key pair used for encrypting
// archives at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// LivenessConfig configures the optional ping emitted after every tick.
type LivenessConfig struct {
	URL     string `toml:"url,omitempty"`
	Timeout string `toml:"timeout,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served by "xb run".
type MetricsConfig struct {
	Listen string `toml:"listen,omitempty"` // e.g. ":9310"; empty disables
}

// LoggingConfig configures the log level and file rotation.
type LoggingConfig struct {
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// NewConfig creates a new Config rooted at home with default paths and
// settings.
func NewConfig(home string) *Config {
	return &Config{
		WorkDir:    filepath.Join(home, "work"),
		RestoreDir: filepath.Join(home, "restore"),
		LogDir:     filepath.Join(home, "log"),
		ArchiveExt: "tar.gz",
		Schedule:   ScheduleConfig{Interval: "1h"},
		Retention:  RetentionConfig{Window: "7d"},
		Store:      StoreConfig{Type: "s3"},
		Engine: EngineConfig{
			Binary:           "xtrabackup",
			CompletionMarker: "xtrabackup_checkpoints",
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(home, "keys", "xb.pub"),
			PrivateKeyPath: filepath.Join(home, "keys", "xb.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(home, "db")},
		Liveness: LivenessConfig{Timeout: "10s"},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file can carry the engine password and S3 secret.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
