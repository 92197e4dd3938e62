package csvexport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	alarms "linesim/internal/alarms/domain"
)

// Source reads alarm rows from a CSV history export.
type Source struct {
	path       string
	columns    alarms.Columns
	skipHeader bool
	comma      rune
}

// Option configures the source.
type Option func(*Source)

// WithColumns overrides the positional layout.
func WithColumns(columns alarms.Columns) Option {
	return func(s *Source) {
		s.columns = columns
	}
}

// WithHeader sets whether the first record is a header row.
func WithHeader(header bool) Option {
	return func(s *Source) {
		s.skipHeader = header
	}
}

// WithComma overrides the field delimiter.
func WithComma(comma rune) Option {
	return func(s *Source) {
		if comma != 0 {
			s.comma = comma
		}
	}
}

// NewSource constructs a CSV source.
func NewSource(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, errors.New("csv export: empty path")
	}
	s := &Source{
		path:       path,
		columns:    alarms.DefaultColumns(),
		skipHeader: true,
		comma:      ',',
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rows implements alarms.RowSource. Lines the CSV reader cannot split are dropped.
func (s *Source) Rows(ctx context.Context) ([]alarms.Row, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", alarms.ErrSourceUnavailable, s.path)
		}
		return nil, err
	}
	defer file.Close()
	return s.read(ctx, file)
}

func (s *Source) read(ctx context.Context, r io.Reader) ([]alarms.Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = s.comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows []alarms.Row
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, err
		}
		if first {
			first = false
			if s.skipHeader {
				continue
			}
		}
		rows = append(rows, s.columns.Row(record))
	}
	return rows, nil
}
