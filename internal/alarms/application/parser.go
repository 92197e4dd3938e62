package application

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
)

// Export timestamp layouts, tried in order.
var timestampLayouts = []string{
	"01/02/2006 15:04:05.000",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
}

// TimestampPolicy decides what happens to a row whose timestamp cannot be parsed.
type TimestampPolicy int

const (
	// TimestampSkip drops the row.
	TimestampSkip TimestampPolicy = iota
	// TimestampNow substitutes the current time. Lossy: it reorders the row for sequence detection.
	TimestampNow
)

// ParseTimestampPolicy maps a config value to a policy.
func ParseTimestampPolicy(value string) (TimestampPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "skip":
		return TimestampSkip, nil
	case "now":
		return TimestampNow, nil
	default:
		return TimestampSkip, fmt.Errorf("alarm parser: unknown timestamp policy %q", value)
	}
}

func (p TimestampPolicy) String() string {
	if p == TimestampNow {
		return "now"
	}
	return "skip"
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RowError describes one rejected or repaired row.
type RowError struct {
	Index int
	Kind  alarms.ErrorKind
	Err   error
}

// ParseReport summarises one parse batch.
type ParseReport struct {
	Total     int
	Filtered  int
	Parsed    int
	Skipped   int
	Defaulted int
	Errors    []RowError
}

// Parser converts raw export rows into alarm records.
type Parser struct {
	logger *zap.Logger
	policy TimestampPolicy
	clock  Clock
}

// ParserOption customizes the parser.
type ParserOption func(*Parser)

// WithTimestampPolicy sets how unparseable timestamps are handled.
func WithTimestampPolicy(policy TimestampPolicy) ParserOption {
	return func(p *Parser) {
		p.policy = policy
	}
}

// WithParserClock overrides the clock used by TimestampNow.
func WithParserClock(clock Clock) ParserOption {
	return func(p *Parser) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewParser constructs a parser.
func NewParser(logger *zap.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{
		logger: logger,
		policy: TimestampSkip,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse keeps alarm-history rows, converts them in input order and skips rows that fail.
// A failing row never aborts the batch.
func (p *Parser) Parse(rows []alarms.Row) ([]alarms.Alarm, ParseReport) {
	report := ParseReport{Total: len(rows)}
	result := make([]alarms.Alarm, 0, len(rows))
	for i, row := range rows {
		if !qualifies(row) {
			report.Filtered++
			continue
		}
		alarm, defaulted, err := p.parseRow(row)
		if err != nil {
			kind := alarms.KindOf(err)
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Index: i, Kind: kind, Err: err})
			p.logger.Warn("skipping alarm row",
				zap.Int("row", i),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		if defaulted {
			report.Defaulted++
			report.Errors = append(report.Errors, RowError{Index: i, Kind: alarms.KindUnparseableTimestamp, Err: alarms.ErrUnparseableTimestamp})
			p.logger.Warn("alarm timestamp defaulted to now", zap.Int("row", i))
		}
		if alarm.ClearedAt != nil && alarm.ClearedAt.Before(alarm.ActivatedAt) {
			p.logger.Warn("alarm cleared before activation",
				zap.Int("row", i),
				zap.String("module", alarm.Module),
				zap.Int("code", alarm.Code),
			)
		}
		result = append(result, alarm)
	}
	report.Parsed = len(result)
	return result, report
}

func qualifies(row alarms.Row) bool {
	if !row.Severity.Valid {
		return false
	}
	if _, ok := alarms.ParseSeverity(row.Severity.String); !ok {
		return false
	}
	return row.Module.Valid && row.Code.Valid && row.Message.Valid
}

func (p *Parser) parseRow(row alarms.Row) (alarms.Alarm, bool, error) {
	severity, _ := alarms.ParseSeverity(row.Severity.String)
	code, err := parseCode(row.Code.String)
	if err != nil {
		return alarms.Alarm{}, false, err
	}
	if !row.ActivatedAt.Valid {
		return alarms.Alarm{}, false, fmt.Errorf("%w: missing activation time", alarms.ErrMalformedRecord)
	}

	defaulted := false
	activatedAt, err := ParseExportTimestamp(row.ActivatedAt.String)
	if err != nil {
		if p.policy != TimestampNow {
			return alarms.Alarm{}, false, err
		}
		activatedAt = p.clock.Now()
		defaulted = true
	}

	var clearedAt *time.Time
	if row.ClearedAt.Valid {
		cleared, err := ParseExportTimestamp(row.ClearedAt.String)
		if err != nil {
			if p.policy != TimestampNow {
				return alarms.Alarm{}, false, err
			}
			cleared = p.clock.Now()
			defaulted = true
		}
		clearedAt = &cleared
	}

	reference := ""
	if row.Reference.Valid {
		reference = row.Reference.String
	}
	alarm := alarms.NewAlarm(row.Module.String, severity, code, row.Message.String, reference, activatedAt, clearedAt)
	return alarm, defaulted, nil
}

// ParseExportTimestamp parses MM/DD/YYYY HH:MM:SS[.mmm].
func ParseExportTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", alarms.ErrUnparseableTimestamp, value)
}

func parseCode(value string) (int, error) {
	value = strings.TrimSpace(value)
	if code, err := strconv.Atoi(value); err == nil {
		return code, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: code %q", alarms.ErrMalformedRecord, value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: code %q", alarms.ErrMalformedRecord, value)
	}
	return int(f), nil
}
