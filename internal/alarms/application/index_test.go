package application

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alarms "linesim/internal/alarms/domain"
)

var base = time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)

func alarmAt(module string, severity alarms.Severity, message string, at time.Time, duration time.Duration) alarms.Alarm {
	var cleared *time.Time
	if duration > 0 {
		c := at.Add(duration)
		cleared = &c
	}
	return alarms.NewAlarm(module, severity, 1, message, "", at, cleared)
}

func TestIndex_GroupsAndStats(t *testing.T) {
	records := []alarms.Alarm{
		alarmAt("MMA", alarms.SeverityWarning, "Guard door 1 open", base, 2*time.Second),
		alarmAt("SDC", alarms.SeverityFault, "Servo drive", base.Add(time.Hour), 0),
		alarmAt("MMA", alarms.SeverityWarning, "Guard door 1 open", base.Add(2*time.Hour), 4*time.Second),
		alarmAt("MMA", alarms.SeverityFault, "Fault routine started", base.Add(3*time.Hour), 9*time.Second),
	}

	idx := NewIndex(records)

	assert.Equal(t, []alarms.GroupKey{
		{Module: "MMA", Severity: alarms.SeverityWarning},
		{Module: "SDC", Severity: alarms.SeverityFault},
		{Module: "MMA", Severity: alarms.SeverityFault},
	}, idx.Groups())
	assert.Len(t, idx.Group(alarms.GroupKey{Module: "MMA", Severity: alarms.SeverityWarning}), 2)

	stats, ok := idx.Stats(alarms.GroupKey{Module: "MMA", Severity: alarms.SeverityWarning})
	require.True(t, ok)
	assert.Equal(t, DurationStats{Mean: 3000, Min: 2000, Max: 4000, Count: 2}, stats)

	_, ok = idx.Stats(alarms.GroupKey{Module: "SDC", Severity: alarms.SeverityFault})
	assert.False(t, ok, "groups without durations have no stats")
	assert.Len(t, idx.DurationStats(), 2)

	assert.Equal(t, []string{"MMA", "SDC"}, idx.Modules())
	assert.Equal(t, []string{"Guard door 1 open", "Fault routine started"}, idx.MessageCatalog()["MMA"])
	assert.Len(t, idx.ByModule("MMA"), 3)
	assert.Empty(t, idx.ByModule("BCM"))

	summary := idx.Summary()
	assert.Equal(t, Summary{Alarms: 4, Groups: 3, CommonPatterns: 0, Sequences: 0, Modules: 2}, summary)
}

func TestIndex_DurationStatsInMillis(t *testing.T) {
	idx := NewIndex([]alarms.Alarm{
		alarmAt("BCM", alarms.SeverityWarning, "Air pressure low", base, 100*time.Millisecond),
		alarmAt("BCM", alarms.SeverityWarning, "Air pressure low", base.Add(time.Minute), 200*time.Millisecond),
		alarmAt("BCM", alarms.SeverityWarning, "Air pressure low", base.Add(2*time.Minute), 300*time.Millisecond),
	})

	stats, ok := idx.Stats(alarms.GroupKey{Module: "BCM", Severity: alarms.SeverityWarning})
	require.True(t, ok)
	assert.Equal(t, DurationStats{Mean: 200, Min: 100, Max: 300, Count: 3}, stats)
}

func TestIndex_CommonPatternsCapped(t *testing.T) {
	var records []alarms.Alarm
	for i := 0; i < 12; i++ {
		records = append(records, alarmAt("BAS", alarms.SeverityWarning, "BCM server offline", base.Add(time.Duration(i)*time.Hour), 0))
	}
	for i := 0; i < 4; i++ {
		records = append(records, alarmAt("SBC", alarms.SeverityFault, "Stretching drive", base.Add(time.Duration(i)*time.Hour), 0))
	}

	idx := NewIndex(records)
	common := idx.CommonPatterns()

	require.Len(t, common, 1)
	assert.Equal(t, alarms.GroupKey{Module: "BAS", Severity: alarms.SeverityWarning}, common[0].Key)
	assert.Len(t, common[0].Alarms, CommonPatternCap)
	assert.Equal(t, records[0].ActivatedAt, common[0].Alarms[0].ActivatedAt)
	assert.Equal(t, records[9].ActivatedAt, common[0].Alarms[9].ActivatedAt)
	assert.Len(t, idx.Group(common[0].Key), 12)
}

func TestDetectSequences_GapBoundary(t *testing.T) {
	at := func(offset time.Duration) alarms.Alarm {
		return alarmAt("MMA", alarms.SeverityFault, "x", base.Add(offset), 0)
	}

	inclusive := []alarms.Alarm{at(0), at(300 * time.Second), at(600 * time.Second)}
	sequences := DetectSequences(inclusive, SequenceGap, MinSequenceLength)
	require.Len(t, sequences, 1)
	assert.Len(t, sequences[0], 3)

	split := []alarms.Alarm{at(0), at(300*time.Second + time.Millisecond), at(600*time.Second + time.Millisecond)}
	assert.Empty(t, DetectSequences(split, SequenceGap, MinSequenceLength))
}

func TestDetectSequences_SortsAndDropsShortRuns(t *testing.T) {
	at := func(offset time.Duration, message string) alarms.Alarm {
		return alarmAt("MMA", alarms.SeverityFault, message, base.Add(offset), 0)
	}
	records := []alarms.Alarm{
		at(2*time.Minute, "c"),
		at(0, "a"),
		at(time.Minute, "b"),
		at(time.Hour, "lonely"),
		at(2*time.Hour, "d"),
		at(2*time.Hour+time.Second, "e"),
	}

	sequences := DetectSequences(records, SequenceGap, MinSequenceLength)

	require.Len(t, sequences, 1)
	messages := []string{sequences[0][0].Message, sequences[0][1].Message, sequences[0][2].Message}
	assert.Equal(t, []string{"a", "b", "c"}, messages)
	assert.Nil(t, DetectSequences(nil, SequenceGap, MinSequenceLength))
}

func TestDetectSequences_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	build := func(gaps []int) []alarms.Alarm {
		records := make([]alarms.Alarm, 0, len(gaps))
		at := base
		for _, gap := range gaps {
			at = at.Add(time.Duration(gap) * time.Second)
			records = append(records, alarmAt("MMA", alarms.SeverityWarning, "m", at, 0))
		}
		return records
	}

	properties.Property("sequences are long, tight and separated", prop.ForAll(
		func(gaps []int) bool {
			records := build(gaps)
			sequences := DetectSequences(records, SequenceGap, MinSequenceLength)
			total := 0
			for i, seq := range sequences {
				if len(seq) < MinSequenceLength {
					return false
				}
				total += len(seq)
				for j := 1; j < len(seq); j++ {
					gap := seq[j].ActivatedAt.Sub(seq[j-1].ActivatedAt)
					if gap < 0 || gap > SequenceGap {
						return false
					}
				}
				if i > 0 {
					prev := sequences[i-1]
					if seq[0].ActivatedAt.Sub(prev[len(prev)-1].ActivatedAt) <= SequenceGap {
						return false
					}
				}
			}
			return total <= len(records)
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.Property("tight runs form one sequence", prop.ForAll(
		func(gaps []int) bool {
			records := build(gaps)
			sequences := DetectSequences(records, SequenceGap, MinSequenceLength)
			if len(records) < MinSequenceLength {
				return len(sequences) == 0
			}
			return len(sequences) == 1 && len(sequences[0]) == len(records)
		},
		gen.SliceOf(gen.IntRange(0, 300)),
	))

	properties.TestingRun(t)
}
