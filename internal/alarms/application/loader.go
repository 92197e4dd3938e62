package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
	"linesim/internal/observability/metrics"
)

// NamedSource pairs a row source with a label for logging.
type NamedSource struct {
	Name   string
	Source alarms.RowSource
}

// Loader reads the first available alarm history and indexes it.
type Loader struct {
	parser  *Parser
	sources []NamedSource
	logger  *zap.Logger
}

// NewLoader constructs a loader. Sources are tried in order.
func NewLoader(parser *Parser, logger *zap.Logger, sources ...NamedSource) (*Loader, error) {
	if parser == nil {
		return nil, errors.New("alarm loader: nil parser")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var usable []NamedSource
	for _, source := range sources {
		if source.Source != nil {
			usable = append(usable, source)
		}
	}
	return &Loader{parser: parser, sources: usable, logger: logger}, nil
}

// Load returns the index of the first source that yields rows.
// When no source can be read the error wraps alarms.ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context) (*Index, ParseReport, error) {
	var lastErr error
	for _, source := range l.sources {
		rows, err := source.Source.Rows(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ParseReport{}, ctx.Err()
			}
			lastErr = err
			l.logger.Warn("alarm source not loaded", zap.String("source", source.Name), zap.Error(err))
			continue
		}
		records, report := l.parser.Parse(rows)
		metrics.ObserveAlarmParse(report.Parsed, report.Skipped, report.Filtered, report.Defaulted)
		idx := NewIndex(records)
		summary := idx.Summary()
		l.logger.Info("alarm history loaded",
			zap.String("source", source.Name),
			zap.Int("rows", report.Total),
			zap.Int("alarms", summary.Alarms),
			zap.Int("skipped", report.Skipped),
			zap.Int("groups", summary.Groups),
			zap.Int("common_patterns", summary.CommonPatterns),
			zap.Int("sequences", summary.Sequences),
		)
		return idx, report, nil
	}
	if lastErr == nil {
		return nil, ParseReport{}, fmt.Errorf("%w: no sources configured", alarms.ErrSourceUnavailable)
	}
	if !errors.Is(lastErr, alarms.ErrSourceUnavailable) {
		lastErr = fmt.Errorf("%w: %v", alarms.ErrSourceUnavailable, lastErr)
	}
	return nil, ParseReport{}, lastErr
}
