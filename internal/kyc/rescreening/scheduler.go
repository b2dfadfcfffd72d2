// Package rescreening periodically re-runs screening for approved subjects
// whose cadence has elapsed, for expired cases, and for cycles a vendor fault
// left in SCREENING. It also sweeps for expiring identity documents, and
// expires approved cases past their review date.
package rescreening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"kyccase/internal/kyc/metrics"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
)

const (
	systemActor = "rescreening-scheduler"

	jobRescreen = "rescreening"
	jobExpiry   = "document-expiry"
	jobExpire   = "case-expiry"
)

// Screener runs one screening cycle; *screening.Orchestrator satisfies it.
type Screener interface {
	RunForSubject(ctx context.Context, subjectID id.SubjectID, actor string) (*screening.Outcome, error)
}

// JobLocker keeps replicas from running the same batch. acquired is false
// when another holder has it.
type JobLocker interface {
	TryJob(ctx context.Context, job string) (release func(), acquired bool, err error)
}

// Config controls batch size and schedules. Zero intervals disable a job.
type Config struct {
	Concurrency      int
	RescreenInterval time.Duration
	ExpiryInterval   time.Duration
	ExpiryWindow     time.Duration
	ExpireInterval   time.Duration
	DryRun           bool
	// RetryAfter is how long a cycle may sit in SCREENING without a result
	// before the batch screens it again.
	RetryAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:      4,
		RescreenInterval: time.Hour,
		ExpiryInterval:   24 * time.Hour,
		ExpiryWindow:     30 * 24 * time.Hour,
		ExpireInterval:   time.Hour,
		RetryAfter:       30 * time.Minute,
	}
}

// Summary counts one RunOnce batch.
type Summary struct {
	Scanned   int `json:"scanned"`
	Enqueued  int `json:"enqueued"`
	Skipped   int `json:"skipped"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Scheduler struct {
	cfg      Config
	catalog  ports.Catalog
	screener Screener
	locker   ports.SubjectLocker
	jobs     JobLocker
	alerts   ports.AlertPublisher
	auditor  ports.AuditEmitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[id.SubjectID]struct{}
	cron     *gocron.Scheduler
}

type Option func(*Scheduler)

func WithJobLocker(j JobLocker) Option {
	return func(s *Scheduler) {
		s.jobs = j
	}
}

func WithAlerts(p ports.AlertPublisher) Option {
	return func(s *Scheduler) {
		s.alerts = p
	}
}

func WithAuditor(a ports.AuditEmitter) Option {
	return func(s *Scheduler) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, catalog ports.Catalog, screener Screener, locker ports.SubjectLocker, opts ...Option) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = DefaultConfig().ExpiryWindow
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultConfig().RetryAfter
	}
	s := &Scheduler{
		cfg:      cfg,
		catalog:  catalog,
		screener: screener,
		locker:   locker,
		logger:   slog.Default(),
		now:      time.Now,
		inFlight: make(map[id.SubjectID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rescreenStates are the case states a batch looks at.
var rescreenStates = []models.State{models.StateApproved, models.StateExpired, models.StateScreening}

// RunOnce rescreens every approved subject whose cadence has elapsed, every
// expired case, and every cycle stranded in SCREENING by a vendor fault.
// A failed subject is counted and logged; the batch continues and the
// subject is retried by a later batch.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	var cases []*workflow.Case
	for _, st := range rescreenStates {
		found, err := s.catalog.ListCases(ctx, ports.CaseFilter{State: st})
		if err != nil {
			return sum, fmt.Errorf("list %s cases: %w", st, err)
		}
		cases = append(cases, found...)
	}
	sum.Scanned = len(cases)
	now := s.now()

	var due []id.SubjectID
	for _, c := range cases {
		ok, err := s.eligible(ctx, c, now)
		if err != nil {
			return sum, err
		}
		if !ok || !s.claim(c.SubjectID()) {
			sum.Skipped++
			continue
		}
		due = append(due, c.SubjectID())
	}
	sum.Enqueued = len(due)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, subjectID := range due {
		g.Go(func() error {
			defer s.unclaim(subjectID)
			s.metrics.IncRescreeningEnqueued()
			out, err := s.screener.RunForSubject(gctx, subjectID, systemActor)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				s.metrics.IncRescreeningFailed()
				s.logger.ErrorContext(gctx, "rescreening failed",
					"subject_id", subjectID,
					"error", err,
				)
				return nil
			}
			sum.Succeeded++
			s.notify(gctx, out)
			return nil
		})
	}
	// workers never return errors
	_ = g.Wait()

	s.logger.InfoContext(ctx, "rescreening batch finished",
		"scanned", sum.Scanned,
		"enqueued", sum.Enqueued,
		"skipped", sum.Skipped,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
	)
	return sum, nil
}

// eligible decides whether a listed case is due. Approved cases are due when
// never screened or past their cadence, expired cases always, and screening
// cases only when the cycle has no result and started RetryAfter ago.
func (s *Scheduler) eligible(ctx context.Context, c *workflow.Case, now time.Time) (bool, error) {
	switch c.State() {
	case models.StateExpired:
		return true, nil
	case models.StateScreening:
		started := c.ScreeningTimestamp()
		if started != nil && now.Sub(*started) < s.cfg.RetryAfter {
			return false, nil
		}
	}

	r, err := s.catalog.LatestResult(ctx, c.SubjectID())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("latest result for %s: %w", c.SubjectID(), err)
	}
	if c.State() == models.StateScreening {
		return false, nil
	}
	return now.Sub(r.ScreenedAt) >= models.Cadence(r.RiskLevel), nil
}

func (s *Scheduler) claim(subjectID id.SubjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[subjectID]; busy {
		return false
	}
	s.inFlight[subjectID] = struct{}{}
	return true
}

func (s *Scheduler) unclaim(subjectID id.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, subjectID)
}

func (s *Scheduler) notify(ctx context.Context, out *screening.Outcome) {
	if s.alerts == nil || out == nil || out.Result == nil {
		return
	}
	a := ports.Alert{
		SubjectID:  out.Subject.ID,
		ExternalID: out.Subject.ExternalID,
		Title:      "RESCREENED",
		Description: fmt.Sprintf("%s rescreened: %s, risk %s, case %s",
			out.Subject.DisplayName(), out.Result.KYCStatus, out.Result.RiskLevel, out.Case.State()),
		Severity: ports.AlertLow,
		RaisedAt: s.now(),
	}
	if err := s.alerts.Publish(ctx, a); err != nil {
		s.logger.WarnContext(ctx, "rescreening notification failed",
			"subject_id", a.SubjectID,
			"error", err,
		)
		return
	}
	s.metrics.IncAlert(string(a.Severity))
}

// ExpireOverdue moves approved cases past their review date to EXPIRED and
// returns how many moved.
func (s *Scheduler) ExpireOverdue(ctx context.Context) (int, error) {
	cases, err := s.catalog.ListCases(ctx, ports.CaseFilter{State: models.StateApproved})
	if err != nil {
		return 0, fmt.Errorf("list approved cases: %w", err)
	}
	now := s.now()
	expired := 0
	for _, c := range cases {
		if !c.ReviewDue(now) {
			continue
		}
		moved, err := s.expire(ctx, c.SubjectID(), now)
		if err != nil {
			s.logger.ErrorContext(ctx, "case expiry failed",
				"subject_id", c.SubjectID(),
				"error", err,
			)
			continue
		}
		if moved {
			expired++
		}
	}
	return expired, nil
}

func (s *Scheduler) expire(ctx context.Context, subjectID id.SubjectID, now time.Time) (bool, error) {
	release, err := s.locker.Acquire(ctx, subjectID)
	if err != nil {
		return false, err
	}
	defer release()

	moved := false
	err = s.catalog.RunInTx(ctx, func(ctx context.Context, tx ports.Store) error {
		c, err := tx.GetCaseForUpdate(ctx, subjectID)
		if err != nil {
			return err
		}
		// rescreened or reopened since the scan
		if !c.ReviewDue(now) {
			return nil
		}
		if err := workflow.Expire(c, systemActor, now); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return err
		}
		moved = true
		s.metrics.IncTransition(string(models.StateApproved), string(models.StateExpired))
		if s.auditor == nil {
			return nil
		}
		return s.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventCaseExpired,
			Decision:  string(models.StateExpired),
			Reason:    "review date passed",
			ActorID:   systemActor,
		})
	})
	return moved, err
}

// Start registers the periodic jobs and starts the scheduler. Stop it with
// Stop or by cancelling ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	register := func(name string, every time.Duration, fn func(context.Context) error) error {
		if every <= 0 {
			s.logger.InfoContext(ctx, "scheduled job disabled", "job", name)
			return nil
		}
		if _, err := cron.Every(every).Do(func() { s.runJob(ctx, name, fn) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		return nil
	}
	if err := register(jobRescreen, s.cfg.RescreenInterval, func(ctx context.Context) error {
		_, err := s.RunOnce(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := register(jobExpiry, s.cfg.ExpiryInterval, func(ctx context.Context) error {
		_, err := s.CheckExpiringDocuments(ctx, s.cfg.ExpiryWindow, s.cfg.DryRun)
		return err
	}); err != nil {
		return err
	}
	if err := register(jobExpire, s.cfg.ExpireInterval, func(ctx context.Context) error {
		n, err := s.ExpireOverdue(ctx)
		if n > 0 {
			s.logger.InfoContext(ctx, "expired overdue cases", "count", n)
		}
		return err
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = cron
	s.mu.Unlock()
	cron.StartAsync()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler; running jobs finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()
	if cron != nil {
		cron.Stop()
	}
}

// runJob runs fn under the named job lock when one is configured.
func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if s.jobs != nil {
		release, acquired, err := s.jobs.TryJob(ctx, name)
		if err != nil {
			s.logger.ErrorContext(ctx, "job lock failed", "job", name, "error", err)
			return
		}
		if !acquired {
			s.logger.DebugContext(ctx, "job held by another replica", "job", name)
			return
		}
		defer release()
	}
	if err := fn(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err)
	}
}
