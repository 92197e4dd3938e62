package alarms

import "errors"

// ErrorKind classifies ingestion failures.
type ErrorKind string

const (
	KindMalformedRecord      ErrorKind = "malformed_record"
	KindUnparseableTimestamp ErrorKind = "unparseable_timestamp"
	KindSourceUnavailable    ErrorKind = "source_unavailable"
)

var (
	// ErrMalformedRecord marks a row whose fields cannot be extracted.
	ErrMalformedRecord = errors.New("alarm: malformed record")
	// ErrUnparseableTimestamp marks a timestamp matching none of the export layouts.
	ErrUnparseableTimestamp = errors.New("alarm: unparseable timestamp")
	// ErrSourceUnavailable indicates the alarm history could not be opened.
	ErrSourceUnavailable = errors.New("alarm: source unavailable")
)

// KindOf maps an error to its ingestion kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnparseableTimestamp):
		return KindUnparseableTimestamp
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	default:
		return KindMalformedRecord
	}
}
