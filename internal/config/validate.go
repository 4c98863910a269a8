package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigMissingError names a required setting that is absent.
type ConfigMissingError struct {
	Key string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("required setting %s is not set", e.Key)
}

// Validate checks that every required setting is present and that duration
// settings parse. It performs no I/O.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"work_dir", c.WorkDir},
		{"restore_dir", c.RestoreDir},
		{"archive_ext", c.ArchiveExt},
		{"store.type", c.Store.Type},
		{"engine.binary", c.Engine.Binary},
		{"engine.completion_marker", c.Engine.CompletionMarker},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigMissingError{Key: r.key}
		}
	}

	switch c.Store.Type {
	case "s3":
		if c.Store.Bucket == "" {
			return &ConfigMissingError{Key: "store.bucket"}
		}
		if c.Store.Region == "" && c.Store.Endpoint == "" {
			return &ConfigMissingError{Key: "store.region"}
		}
		if (c.Store.AccessKey == "") != (c.Store.SecretKey == "") {
			return fmt.Errorf("store.access_key and store.secret_key must be set together")
		}
	case "filesystem":
		if c.Store.Root == "" {
			return &ConfigMissingError{Key: "store.root"}
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	if c.Schedule.Cron == "" && c.Schedule.Interval == "" {
		return &ConfigMissingError{Key: "schedule.interval"}
	}
	if c.Schedule.Cron == "" {
		if _, err := ParseDuration(c.Schedule.Interval); err != nil {
			return fmt.Errorf("schedule.interval: %w", err)
		}
	}
	if _, err := c.RetentionWindow(); err != nil {
		return err
	}
	if c.Liveness.Timeout != "" {
		if _, err := ParseDuration(c.Liveness.Timeout); err != nil {
			return fmt.Errorf("liveness.timeout: %w", err)
		}
	}
	return nil
}

// RetentionWindow parses retention.window. An empty window is zero, which
// disables the sweep.
func (c *Config) RetentionWindow() (time.Duration, error) {
	if c.Retention.Window == "" {
		return 0, nil
	}
	d, err := ParseDuration(c.Retention.Window)
	if err != nil {
		return 0, fmt.Errorf("retention.window: %w", err)
	}
	return d, nil
}

// ScheduleSpec returns the trigger expression for the schedule: the cron
// expression when set, otherwise "@every <interval>".
func (c *Config) ScheduleSpec() (string, error) {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron, nil
	}
	d, err := ParseDuration(c.Schedule.Interval)
	if err != nil {
		return "", fmt.Errorf("schedule.interval: %w", err)
	}
	return "@every " + d.String(), nil
}

// ParseDuration extends time.ParseDuration with a "d" suffix for whole
// days. A bare "0" is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
