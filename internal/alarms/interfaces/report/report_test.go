package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	alarmapp "linesim/internal/alarms/application"
	alarms "linesim/internal/alarms/domain"
)

func sampleIndex() *alarmapp.Index {
	base := time.Date(2023, 5, 1, 6, 0, 0, 0, time.UTC)
	var records []alarms.Alarm
	for i := 0; i < 5; i++ {
		activated := base.Add(time.Duration(i) * 10 * time.Second)
		cleared := activated.Add(time.Duration(i+1) * time.Second)
		records = append(records, alarms.NewAlarm("SDC", alarms.SeverityFault, 40+i, "Servo drive fault", "=SDC", activated, &cleared))
	}
	records = append(records, alarms.NewAlarm("BCM", alarms.SeverityNote, 1, "Queue high", "=BCM", base.Add(time.Minute), nil))
	return alarmapp.NewIndex(records)
}

func TestBuildPatternXLSX(t *testing.T) {
	generated := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	data, err := BuildPatternXLSX(sampleIndex(), generated)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"summary", "groups", "common", "sequences", "messages"}, f.GetSheetList())

	value, err := f.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:00:00Z", value)
	value, err = f.GetCellValue("summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "6", value)

	rows, err := f.GetRows("groups")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"SDC_Fault", "SDC", "Fault", "5", "3000", "1000", "5000", "5"}, rows[1])
	assert.Equal(t, []string{"BCM_Note", "BCM", "Note", "1"}, rows[2])

	rows, err = f.GetRows("common")
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	rows, err = f.GetRows("sequences")
	require.NoError(t, err)
	assert.Len(t, rows, 7, "one sequence of six alarms")

	rows, err = f.GetRows("messages")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Module", "Message"}, {"SDC", "Servo drive fault"}, {"BCM", "Queue high"}}, rows)
}

func TestBuildPatternPDF(t *testing.T) {
	data, err := BuildPatternPDF(sampleIndex(), time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	empty, err := BuildPatternPDF(alarmapp.NewIndex(nil), time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}
