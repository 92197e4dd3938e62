package alarms

import (
	"fmt"
	"time"
)

const (
	ModuleMainMachine   = "MMA"
	ModuleBasicSystems  = "BAS"
	ModuleSafetyControl = "SDC"
	ModuleBlockControl  = "SBC"
	ModuleBlockComm     = "BCM"
)

// Alarm is one historical alarm occurrence taken from an export.
// Values are immutable once built with NewAlarm.
type Alarm struct {
	Module      string         `json:"module"`
	Severity    Severity       `json:"severity"`
	Code        int            `json:"code"`
	Message     string         `json:"message"`
	Reference   string         `json:"reference"`
	ActivatedAt time.Time      `json:"activated_at"`
	ClearedAt   *time.Time     `json:"cleared_at,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty"`
}

// NewAlarm builds an alarm and derives its duration when a clear time is known.
func NewAlarm(module string, severity Severity, code int, message, reference string, activatedAt time.Time, clearedAt *time.Time) Alarm {
	alarm := Alarm{
		Module:      module,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Reference:   reference,
		ActivatedAt: activatedAt,
	}
	if clearedAt != nil {
		cleared := *clearedAt
		duration := cleared.Sub(activatedAt)
		alarm.ClearedAt = &cleared
		alarm.Duration = &duration
	}
	return alarm
}

// DurationMillis returns the derived duration in milliseconds.
func (a Alarm) DurationMillis() (int64, bool) {
	if a.Duration == nil {
		return 0, false
	}
	return a.Duration.Milliseconds(), true
}

// Key returns the grouping key of the alarm.
func (a Alarm) Key() GroupKey {
	return GroupKey{Module: a.Module, Severity: a.Severity}
}

// GroupKey buckets alarms by source module and severity.
type GroupKey struct {
	Module   string
	Severity Severity
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s_%s", k.Module, k.Severity)
}

// MarshalText lets GroupKey be used as a JSON object key.
func (k GroupKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
