// Package service implements the inbound KYC commands. Every
// state-mutating command takes the per-Subject lock, runs its catalog
// writes and audit events in one transaction, and translates store
// sentinels into coded domain errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kyccase/internal/kyc/metrics"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/screening"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
)

// Screener runs one screening cycle. It takes the subject lock itself, so
// the service never holds it while screening.
type Screener interface {
	RunForSubject(ctx context.Context, subjectID id.SubjectID, actor string) (*screening.Outcome, error)
}

type Service struct {
	catalog  ports.Catalog
	screener Screener
	client   ports.ScreeningClient
	reports  *report.Builder
	locker   ports.SubjectLocker
	auditor  ports.AuditEmitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithAuditor(a ports.AuditEmitter) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(catalog ports.Catalog, screener Screener, client ports.ScreeningClient, reports *report.Builder, locker ports.SubjectLocker, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		screener: screener,
		client:   client,
		reports:  reports,
		locker:   locker,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// locked runs fn in a catalog transaction while holding the subject lock.
func (s *Service) locked(ctx context.Context, subjectID id.SubjectID, fn func(ctx context.Context, tx ports.Store) error) error {
	release, err := s.locker.Acquire(ctx, subjectID)
	if err != nil {
		return translate(fmt.Errorf("acquire subject lock: %w", err))
	}
	defer release()
	return translate(s.catalog.RunInTx(ctx, fn))
}

func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}

func (s *Service) recordTransition(ctx context.Context, subjectID id.SubjectID, from, to models.State, actor, reason string, at time.Time) error {
	s.metrics.IncTransition(string(from), string(to))
	return s.emit(ctx, audit.ComplianceEvent{
		Timestamp: at,
		SubjectID: subjectID,
		Action:    audit.EventCaseTransitioned,
		Decision:  string(to),
		Reason:    reason,
		ActorID:   actor,
	})
}

// translate maps infrastructure sentinels onto domain codes. Errors that
// already carry a code pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicts with an existing record")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "invalid state")
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	}
	return err
}

func notFound(what string, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	}
	return err
}
