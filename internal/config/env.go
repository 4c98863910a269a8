package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*dst(cfg) = v
		return nil
	}
}

func boolean(name string, dst func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst(cfg) = b
		return nil
	}
}

func integer(name string, dst func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst(cfg) = n
		return nil
	}
}

var envBindings = []envBinding{
	{"XB_WORK_DIR", str(func(c *Config) *string { return &c.WorkDir })},
	{"XB_RESTORE_DIR", str(func(c *Config) *string { return &c.RestoreDir })},
	{"XB_LOG_DIR", str(func(c *Config) *string { return &c.LogDir })},
	{"XB_ARCHIVE_EXT", str(func(c *Config) *string { return &c.ArchiveExt })},
	{"XB_SCHEDULE_INTERVAL", str(func(c *Config) *string { return &c.Schedule.Interval })},
	{"XB_SCHEDULE_CRON", str(func(c *Config) *string { return &c.Schedule.Cron })},
	{"XB_SCHEDULE_RUN_AT_START", boolean("XB_SCHEDULE_RUN_AT_START", func(c *Config) *bool { return &c.Schedule.RunAtStart })},
	{"XB_RETENTION_WINDOW", str(func(c *Config) *string { return &c.Retention.Window })},
	{"XB_RETENTION_STRICT", boolean("XB_RETENTION_STRICT", func(c *Config) *bool { return &c.Retention.Strict })},
	{"XB_STORE_TYPE", str(func(c *Config) *string { return &c.Store.Type })},
	{"XB_S3_BUCKET", str(func(c *Config) *string { return &c.Store.Bucket })},
	{"XB_S3_PREFIX", str(func(c *Config) *string { return &c.Store.Prefix })},
	{"XB_S3_REGION", str(func(c *Config) *string { return &c.Store.Region })},
	{"XB_S3_ENDPOINT", str(func(c *Config) *string { return &c.Store.Endpoint })},
	{"XB_S3_ACCESS_KEY", str(func(c *Config) *string { return &c.Store.AccessKey })},
	{"XB_S3_SECRET_KEY", str(func(c *Config) *string { return &c.Store.SecretKey })},
	{"XB_S3_PATH_STYLE", boolean("XB_S3_PATH_STYLE", func(c *Config) *bool { return &c.Store.PathStyle })},
	{"XB_S3_PROXY_URL", str(func(c *Config) *string { return &c.Store.ProxyURL })},
	{"XB_STORE_ROOT", str(func(c *Config) *string { return &c.Store.Root })},
	{"XB_ENGINE_BINARY", str(func(c *Config) *string { return &c.Engine.Binary })},
	{"XB_ENGINE_USER", str(func(c *Config) *string { return &c.Engine.User })},
	{"XB_ENGINE_PASSWORD", str(func(c *Config) *string { return &c.Engine.Password })},
	{"XB_ENGINE_HOST", str(func(c *Config) *string { return &c.Engine.Host })},
	{"XB_ENGINE_PORT", integer("XB_ENGINE_PORT", func(c *Config) *int { return &c.Engine.Port })},
	{"XB_ENGINE_SOCKET", str(func(c *Config) *string { return &c.Engine.Socket })},
	{"XB_ENGINE_DATADIR", str(func(c *Config) *string { return &c.Engine.DataDir })},
	{"XB_ENCRYPTION_TYPE", str(func(c *Config) *string { return &c.Encryption.Type })},
	{"XB_LIVENESS_URL", str(func(c *Config) *string { return &c.Liveness.URL })},
	{"XB_METRICS_LISTEN", str(func(c *Config) *string { return &c.Metrics.Listen })},
	{"XB_LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
}

// ApplyEnv overlays XB_* environment settings onto cfg. Unset variables
// leave the file value alone; a set but empty variable clears it.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("applying environment: %w", err)
		}
	}
	return nil
}

// EnvNames returns the environment variables ApplyEnv reads.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = b.name
	}
	return names
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}
