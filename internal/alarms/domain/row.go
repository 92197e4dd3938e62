package alarms

import (
	"context"
	"strings"
)

// Cell is a nullable text cell from a tabular export.
type Cell struct {
	String string
	Valid  bool
}

// TextCell returns a cell that is null when value is blank or the export's NaN marker.
func TextCell(value string) Cell {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return Cell{}
	}
	return Cell{String: trimmed, Valid: true}
}

// Row is one raw row of an alarm history export.
type Row struct {
	Severity    Cell
	Module      Cell
	Code        Cell
	Message     Cell
	Reference   Cell
	ActivatedAt Cell
	ClearedAt   Cell
}

// RowSource produces raw export rows.
type RowSource interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Columns is the positional layout of an alarm export.
type Columns struct {
	Severity    int `yaml:"severity"`
	ActivatedAt int `yaml:"activated_at"`
	ClearedAt   int `yaml:"cleared_at"`
	Module      int `yaml:"module"`
	Code        int `yaml:"code"`
	Message     int `yaml:"message"`
	Reference   int `yaml:"reference"`
}

// DefaultColumns is the layout of the ErgoBloc alarm history export.
func DefaultColumns() Columns {
	return Columns{
		Severity:    10,
		ActivatedAt: 11,
		ClearedAt:   19,
		Module:      34,
		Code:        35,
		Message:     36,
		Reference:   37,
	}
}

// Row picks the alarm fields out of a positional record. Missing columns are null.
func (c Columns) Row(record []string) Row {
	cell := func(i int) Cell {
		if i < 0 || i >= len(record) {
			return Cell{}
		}
		return TextCell(record[i])
	}
	return Row{
		Severity:    cell(c.Severity),
		Module:      cell(c.Module),
		Code:        cell(c.Code),
		Message:     cell(c.Message),
		Reference:   cell(c.Reference),
		ActivatedAt: cell(c.ActivatedAt),
		ClearedAt:   cell(c.ClearedAt),
	}
}
