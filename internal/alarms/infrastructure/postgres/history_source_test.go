package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alarms "linesim/internal/alarms/domain"
)

func TestHistorySource_Rows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{"severity", "module", "code", "message", "reference", "activated_at", "cleared_at"}
	mock.ExpectQuery(`FROM plant_alarms\s+ORDER BY activated_at, id`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("Warning", "MMA", "4012", "Guard door 1 open", "REF", "03/14/2024 08:15:02.250", "03/14/2024 08:15:07.750").
			AddRow("Fault", "SDC", "17", "Servo drive", nil, "03/14/2024 08:16:00.000", nil))

	source, err := NewHistorySource(db, WithHistoryTable("plant_alarms"))
	require.NoError(t, err)
	rows, err := source.Rows(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "4012", rows[0].Code.String)
	assert.True(t, rows[0].ClearedAt.Valid)
	assert.False(t, rows[1].Reference.Valid)
	assert.False(t, rows[1].ClearedAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistorySource_PingFailureIsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	source, err := NewHistorySource(db)
	require.NoError(t, err)
	_, err = source.Rows(context.Background())
	assert.True(t, errors.Is(err, alarms.ErrSourceUnavailable))
}

func TestHistorySource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(`FROM alarm_history`).WillReturnError(errors.New("relation does not exist"))

	source, err := NewHistorySource(db)
	require.NoError(t, err)
	_, err = source.Rows(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, alarms.ErrSourceUnavailable))
}

func TestNewHistorySource_NilDB(t *testing.T) {
	if _, err := NewHistorySource(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
