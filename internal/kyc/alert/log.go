// Package alert delivers compliance alerts. Log writes structured log
// lines; Kafka produces JSON records keyed by subject; Fanout sends to
// several publishers.
package alert

import (
	"context"
	"errors"
	"log/slog"

	"kyccase/internal/kyc/ports"
)

// Log emits each alert as a structured log record. HIGH alerts log at
// warn level.
type Log struct {
	logger *slog.Logger
}

var _ ports.AlertPublisher = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, a ports.Alert) error {
	level := slog.LevelInfo
	if a.Severity == ports.AlertHigh {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "compliance alert",
		"title", a.Title,
		"severity", a.Severity,
		"subject_id", a.SubjectID,
		"external_id", a.ExternalID,
		"reasons", a.Reasons,
		"description", a.Description,
	)
	return nil
}

// Fanout publishes to every target and joins their errors.
type Fanout []ports.AlertPublisher

func (f Fanout) Publish(ctx context.Context, a ports.Alert) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
