package xb

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger decides when the next scheduler tick fires.
type Trigger interface {
	Next(after time.Time) time.Time
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(after time.Time) time.Time

func (f TriggerFunc) Next(after time.Time) time.Time { return f(after) }

// ParseTrigger accepts a standard five-field cron expression, a descriptor
// such as "@hourly", or "@every <duration>".
func ParseTrigger(spec string) (Trigger, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// IntervalTrigger fires every interval. Intervals below one second are
// rejected because incremental keys have second granularity.
func IntervalTrigger(interval time.Duration) (Trigger, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("schedule interval %s is below one second", interval)
	}
	return cron.Every(interval), nil
}
