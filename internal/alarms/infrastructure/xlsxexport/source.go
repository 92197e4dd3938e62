package xlsxexport

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	alarms "linesim/internal/alarms/domain"
)

// Source reads alarm rows from a sheet of an XLSX history export.
type Source struct {
	path       string
	sheet      string
	columns    alarms.Columns
	skipHeader bool
}

// Option configures the source.
type Option func(*Source)

// WithSheet selects a sheet by name. The first sheet is used by default.
func WithSheet(sheet string) Option {
	return func(s *Source) {
		s.sheet = sheet
	}
}

// WithColumns overrides the positional layout.
func WithColumns(columns alarms.Columns) Option {
	return func(s *Source) {
		s.columns = columns
	}
}

// WithHeader sets whether the first row is a header row.
func WithHeader(header bool) Option {
	return func(s *Source) {
		s.skipHeader = header
	}
}

// NewSource constructs an XLSX source.
func NewSource(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, errors.New("xlsx export: empty path")
	}
	s := &Source{path: path, columns: alarms.DefaultColumns(), skipHeader: true}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rows implements alarms.RowSource.
func (s *Source) Rows(ctx context.Context) ([]alarms.Row, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", alarms.ErrSourceUnavailable, s.path)
		}
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("xlsx export: open %s: %w", s.path, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx export: %s has no sheets", s.path)
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx export: read sheet %s: %w", sheet, err)
	}

	rows := make([]alarms.Row, 0, len(records))
	for i, record := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if i == 0 && s.skipHeader {
			continue
		}
		rows = append(rows, s.columns.Row(record))
	}
	return rows, nil
}
