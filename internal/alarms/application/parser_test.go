package application

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	alarms "linesim/internal/alarms/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func row(severity, module, code, message, activated, cleared string) alarms.Row {
	return alarms.Row{
		Severity:    alarms.TextCell(severity),
		Module:      alarms.TextCell(module),
		Code:        alarms.TextCell(code),
		Message:     alarms.TextCell(message),
		Reference:   alarms.TextCell("REF"),
		ActivatedAt: alarms.TextCell(activated),
		ClearedAt:   alarms.TextCell(cleared),
	}
}

func TestParser_ParsesRowInOrder(t *testing.T) {
	parser := NewParser(nil)
	rows := []alarms.Row{
		row("Warning", "MMA", "4012", "Guard door 1 open", "03/14/2024 08:15:02.250", "03/14/2024 08:15:07.750"),
		row("Fault", "SDC", "17.0", "Servo drive fault", "03/14/2024 08:16:00", ""),
	}

	records, report := parser.Parse(rows)

	require.Len(t, records, 2)
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 0, report.Skipped)

	first := records[0]
	assert.Equal(t, "MMA", first.Module)
	assert.Equal(t, alarms.SeverityWarning, first.Severity)
	assert.Equal(t, 4012, first.Code)
	assert.Equal(t, "REF", first.Reference)
	assert.Equal(t, time.Date(2024, 3, 14, 8, 15, 2, 250*int(time.Millisecond), time.UTC), first.ActivatedAt)
	ms, ok := first.DurationMillis()
	require.True(t, ok)
	assert.Equal(t, int64(5500), ms)

	second := records[1]
	assert.Equal(t, 17, second.Code)
	assert.Nil(t, second.ClearedAt)
	_, ok = second.DurationMillis()
	assert.False(t, ok)
}

func TestParser_SkipsBadCodesAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	parser := NewParser(zap.New(core))

	rows := make([]alarms.Row, 0, 100)
	for i := 0; i < 100; i++ {
		code := fmt.Sprintf("%d", 1000+i)
		if i%20 == 7 {
			code = "abc"
		}
		rows = append(rows, row("Warning", "MMA", code, "Level LT100 high", "01/02/2024 10:00:00", ""))
	}

	records, report := parser.Parse(rows)

	assert.Len(t, records, 95)
	assert.Equal(t, 5, report.Skipped)
	skipped := logs.FilterMessage("skipping alarm row").All()
	require.Len(t, skipped, 5)
	for _, entry := range skipped {
		assert.Equal(t, string(alarms.KindMalformedRecord), entry.ContextMap()["kind"])
	}
}

func TestParser_FiltersNonHistoryRows(t *testing.T) {
	parser := NewParser(nil)
	rows := []alarms.Row{
		row("Info", "MMA", "1", "not an alarm row", "01/02/2024 10:00:00", ""),
		row("", "MMA", "1", "blank severity", "01/02/2024 10:00:00", ""),
		row("Fault", "nan", "1", "no module", "01/02/2024 10:00:00", ""),
		row("Note", "BAS", "2", "BCM server offline", "01/02/2024 10:00:01", ""),
	}

	records, report := parser.Parse(rows)

	require.Len(t, records, 1)
	assert.Equal(t, "BAS", records[0].Module)
	assert.Equal(t, 3, report.Filtered)
	assert.Equal(t, 0, report.Skipped)
}

func TestParser_TimestampPolicy(t *testing.T) {
	bad := []alarms.Row{row("Fault", "SBC", "12", "Stretching drive station: 12", "yesterday", "")}

	records, report := NewParser(nil).Parse(bad)
	assert.Empty(t, records)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, alarms.KindUnparseableTimestamp, report.Errors[0].Kind)
	assert.True(t, errors.Is(report.Errors[0].Err, alarms.ErrUnparseableTimestamp))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	parser := NewParser(nil, WithTimestampPolicy(TimestampNow), WithParserClock(fixedClock{now: now}))
	records, report = parser.Parse(bad)
	require.Len(t, records, 1)
	assert.Equal(t, now, records[0].ActivatedAt)
	assert.Equal(t, 1, report.Defaulted)
}

func TestParser_ClearedBeforeActivationKept(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	parser := NewParser(zap.New(core))

	records, _ := parser.Parse([]alarms.Row{
		row("Warning", "MMA", "1", "Cap feed unit", "01/02/2024 10:00:10", "01/02/2024 10:00:00"),
	})

	require.Len(t, records, 1)
	ms, ok := records[0].DurationMillis()
	require.True(t, ok)
	assert.Equal(t, int64(-10000), ms)
	assert.Equal(t, 1, logs.FilterMessage("alarm cleared before activation").Len())
}

func TestParseTimestampPolicy(t *testing.T) {
	policy, err := ParseTimestampPolicy("NOW")
	require.NoError(t, err)
	assert.Equal(t, TimestampNow, policy)

	policy, err = ParseTimestampPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TimestampSkip, policy)

	_, err = ParseTimestampPolicy("guess")
	assert.Error(t, err)
}

func TestParseExportTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"12/31/2023 23:59:59.999": time.Date(2023, 12, 31, 23, 59, 59, 999*int(time.Millisecond), time.UTC),
		"01/02/2024 03:04:05":     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"1/2/2024 03:04:05":       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := ParseExportTimestamp(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", input, want, got)
		}
	}
	if _, err := ParseExportTimestamp("2024-01-02T03:04:05Z"); !errors.Is(err, alarms.ErrUnparseableTimestamp) {
		t.Fatalf("expected unparseable timestamp, got %v", err)
	}
}
