package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	alarms "linesim/internal/alarms/domain"
)

const defaultHistoryTable = "alarm_history"

// exportTimeFormat renders timestamps in the export layout so the same parser applies.
const exportTimeFormat = "MM/DD/YYYY HH24:MI:SS.MS"

// DBTX is the subset of *sql.DB used here.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// HistorySource reads alarm history rows from a historian table. It never writes.
type HistorySource struct {
	db    DBTX
	table string
}

// HistoryOption configures the source.
type HistoryOption func(*HistorySource)

// WithHistoryTable overrides the default table name.
func WithHistoryTable(table string) HistoryOption {
	return func(s *HistorySource) {
		if table != "" {
			s.table = table
		}
	}
}

// NewHistorySource constructs a historian source.
func NewHistorySource(db DBTX, opts ...HistoryOption) (*HistorySource, error) {
	if db == nil {
		return nil, errors.New("alarm history: nil db")
	}
	s := &HistorySource{db: db, table: defaultHistoryTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rows implements alarms.RowSource.
func (s *HistorySource) Rows(ctx context.Context) ([]alarms.Row, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", alarms.ErrSourceUnavailable, err)
	}

	query := fmt.Sprintf(`
SELECT severity, module, code::text, message, reference,
       to_char(activated_at, '%[2]s'), to_char(cleared_at, '%[2]s')
FROM %[1]s
ORDER BY activated_at, id`, s.table, exportTimeFormat)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("alarm history: query: %w", err)
	}
	defer rows.Close()

	var result []alarms.Row
	for rows.Next() {
		var severity, module, code, message, reference, activatedAt, clearedAt sql.NullString
		if err := rows.Scan(&severity, &module, &code, &message, &reference, &activatedAt, &clearedAt); err != nil {
			return nil, fmt.Errorf("alarm history: scan: %w", err)
		}
		result = append(result, alarms.Row{
			Severity:    cell(severity),
			Module:      cell(module),
			Code:        cell(code),
			Message:     cell(message),
			Reference:   cell(reference),
			ActivatedAt: cell(activatedAt),
			ClearedAt:   cell(clearedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alarm history: rows: %w", err)
	}
	return result, nil
}

func cell(value sql.NullString) alarms.Cell {
	if !value.Valid {
		return alarms.Cell{}
	}
	return alarms.TextCell(value.String)
}
