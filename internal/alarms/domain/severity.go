package alarms

import "strings"

// Severity is the alarm type column of the export.
type Severity string

const (
	SeverityWarning    Severity = "Warning"
	SeverityFault      Severity = "Fault"
	SeverityFirstFault Severity = "FirstFault"
	SeverityNote       Severity = "Note"
	SeverityDebug      Severity = "Debug"
)

// ParseSeverity accepts only the five values the export writes for alarm history rows.
func ParseSeverity(value string) (Severity, bool) {
	switch Severity(value) {
	case SeverityWarning, SeverityFault, SeverityFirstFault, SeverityNote, SeverityDebug:
		return Severity(value), true
	default:
		return "", false
	}
}

// IsFault reports fault-class severities (Fault and FirstFault).
func (s Severity) IsFault() bool {
	return strings.Contains(string(s), "Fault")
}
