// Package screening runs a full screening cycle for one Subject: resolve,
// clear prior results, enter SCREENING, query the vendor, score, derive the
// KYC status, drive the workflow, build the report on a terminal decision,
// and alert compliance.
//
// The cycle holds the per-Subject lock throughout. Catalog writes happen in
// two transactions on either side of the vendor call, so a vendor fault
// leaves the case in SCREENING with its history entry and no result; the
// next run resumes from there.
package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kyccase/internal/kyc/metrics"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/risk"
	"kyccase/internal/kyc/vendor"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
)

const ownerConcurrency = 4

// Outcome describes a completed screening cycle.
type Outcome struct {
	Subject *models.Subject
	Case    *workflow.Case
	Result  *models.ScreeningResult
	Report  *models.Report
	Alert   *ports.Alert
}

// Orchestrator is safe for concurrent use; cycles on different subjects run
// in parallel, cycles on the same subject serialize on the locker.
type Orchestrator struct {
	catalog ports.Catalog
	client  ports.ScreeningClient
	scorer  *risk.Scorer
	reports *report.Builder
	locker  ports.SubjectLocker
	alerts  ports.AlertPublisher
	auditor ports.AuditEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithAlerts(p ports.AlertPublisher) Option {
	return func(o *Orchestrator) {
		o.alerts = p
	}
}

func WithAuditor(a ports.AuditEmitter) Option {
	return func(o *Orchestrator) {
		o.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(catalog ports.Catalog, client ports.ScreeningClient, scorer *risk.Scorer, reports *report.Builder, locker ports.SubjectLocker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog: catalog,
		client:  client,
		scorer:  scorer,
		reports: reports,
		locker:  locker,
		logger:  slog.Default(),
		tracer:  otel.Tracer("kyccase/screening"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run resolves identifier (ID-document number, then registration number,
// then external ID) and screens the matching subject.
func (o *Orchestrator) Run(ctx context.Context, identifier, actor string) (*Outcome, error) {
	subj, err := o.catalog.FindSubjectByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, subjectError(err)
	}
	return o.RunForSubject(ctx, subj.ID, actor)
}

// RunForSubject screens a subject already resolved to its ID.
func (o *Orchestrator) RunForSubject(ctx context.Context, subjectID id.SubjectID, actor string) (out *Outcome, err error) {
	ctx, span := o.tracer.Start(ctx, "screening.run",
		trace.WithAttributes(attribute.String("subject_id", subjectID.String())))
	start := time.Now()
	defer func() {
		o.metrics.ObserveScreeningLatency(time.Since(start))
		if err != nil {
			o.metrics.IncScreeningOutcome("failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := o.client.Configured(); err != nil {
		return nil, err
	}

	release, err := o.locker.Acquire(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("acquire subject lock: %w", err)
	}
	defer release()

	subj, err := o.enterScreening(ctx, subjectID, actor)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := o.query(ctx, subj)
	if err != nil {
		o.logger.ErrorContext(ctx, "screening vendor call failed",
			"subject_id", subjectID,
			"error", err,
		)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err = o.decide(ctx, subjectID, actor, records)
	if err != nil {
		return nil, err
	}
	o.metrics.IncScreeningOutcome(strings.ToLower(string(out.Result.KYCStatus)))
	span.SetAttributes(
		attribute.String("risk_level", string(out.Result.RiskLevel)),
		attribute.String("kyc_status", string(out.Result.KYCStatus)),
	)
	o.logger.InfoContext(ctx, "screening completed",
		"subject_id", subjectID,
		"risk_level", out.Result.RiskLevel,
		"kyc_status", out.Result.KYCStatus,
		"state", out.Case.State(),
	)

	if alert := alertFor(out.Subject, out.Result, o.now()); alert != nil {
		out.Alert = alert
		o.publish(ctx, *alert)
	}
	return out, nil
}

// enterScreening clears prior results and moves the case to SCREENING in one
// transaction. A case already in SCREENING is an interrupted cycle and is
// resumed without a new history entry.
func (o *Orchestrator) enterScreening(ctx context.Context, subjectID id.SubjectID, actor string) (*models.Subject, error) {
	var subj *models.Subject
	err := o.catalog.RunInTx(ctx, func(ctx context.Context, tx ports.Store) error {
		var err error
		subj, err = tx.GetSubject(ctx, subjectID)
		if err != nil {
			return subjectError(err)
		}
		at := o.now()
		c, err := tx.GetCaseForUpdate(ctx, subjectID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			// draft subjects have no case yet; the engine rejects the move
			c = workflow.NewCase(subjectID, subj.CreatedAt)
		case err != nil:
			return fmt.Errorf("load case: %w", err)
		}

		if _, err := tx.DeleteResults(ctx, subjectID); err != nil {
			return fmt.Errorf("delete prior results: %w", err)
		}
		if c.State() == models.StateScreening {
			return nil
		}
		from := c.State()
		if err := workflow.Transition(c, workflow.Request{
			To: models.StateScreening, Actor: actor, Notes: "screening started", At: at,
		}); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		return o.recordTransition(ctx, subjectID, from, c.State(), actor, "", at)
	})
	if err != nil {
		return nil, err
	}
	return subj, nil
}

// query screens the subject, and for businesses each beneficial owner.
func (o *Orchestrator) query(ctx context.Context, subj *models.Subject) ([]models.MatchedRecord, error) {
	all := []models.SourceType{models.SourceAll}
	if subj.Variant() == models.VariantIndividual {
		ind := subj.Individual
		res, err := o.client.CheckIndividual(ctx, ports.IndividualQuery{
			Names: []string{ind.FullName}, DOB: ind.DateOfBirth, Gender: ind.Gender, Includes: all,
		})
		if err != nil {
			return nil, err
		}
		return res.Records, nil
	}

	owners := subj.Business.BeneficialOwners
	results := make([][]models.MatchedRecord, len(owners)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ownerConcurrency)
	g.Go(func() error {
		res, err := o.client.CheckEntity(gctx, ports.EntityQuery{Names: []string{subj.Business.LegalName}, Includes: all})
		if err != nil {
			return err
		}
		results[0] = res.Records
		return nil
	})
	for i, owner := range owners {
		g.Go(func() error {
			res, err := o.client.CheckIndividual(gctx, ports.IndividualQuery{Names: []string{owner.Name}, Includes: all})
			if err != nil {
				return err
			}
			results[i+1] = res.Records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var records []models.MatchedRecord
	for _, r := range results {
		records = append(records, r...)
	}
	return records, nil
}

// decide scores, persists the result, and drives the workflow in one
// transaction.
func (o *Orchestrator) decide(ctx context.Context, subjectID id.SubjectID, actor string, records []models.MatchedRecord) (*Outcome, error) {
	out := &Outcome{}
	err := o.catalog.RunInTx(ctx, func(ctx context.Context, tx ports.Store) error {
		at := o.now()
		subj, err := tx.GetSubject(ctx, subjectID)
		if err != nil {
			return subjectError(err)
		}
		c, err := tx.GetCaseForUpdate(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("load case: %w", err)
		}
		if c.State() != models.StateScreening {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("case left SCREENING during the cycle (now %s)", c.State()))
		}
		docs, err := tx.ListDocuments(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}

		result, reasons := o.assess(subj, docs, records, actor, at)
		steps, err := o.advance(c, subj, docs, result, reasons, actor, at)
		if err != nil {
			return err
		}
		result.CaseState = c.State()

		if err := tx.SaveResult(ctx, result); err != nil {
			return fmt.Errorf("save screening result: %w", err)
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		for _, st := range steps {
			if err := o.recordTransition(ctx, subjectID, st.From, st.To, actor, st.Notes, at); err != nil {
				return err
			}
		}
		if err := o.emit(ctx, audit.ComplianceEvent{
			Timestamp: at,
			SubjectID: subjectID,
			Action:    audit.EventScreeningCompleted,
			Decision:  string(result.KYCStatus),
			Reason:    string(result.RiskLevel),
			ActorID:   actor,
		}); err != nil {
			return err
		}

		out.Subject, out.Case, out.Result = subj, c, result
		if c.State().IsTerminal() {
			rep, err := o.reports.Build(ctx, tx, subj, c, result, actor, at)
			if err != nil {
				return err
			}
			out.Report = rep
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) assess(subj *models.Subject, docs []*models.Document, records []models.MatchedRecord, actor string, at time.Time) (*models.ScreeningResult, []string) {
	cls := vendor.Classify(records)
	result := &models.ScreeningResult{
		ID:                   id.NewResultID(),
		SubjectID:            subj.ID,
		Flags:                cls.Flags,
		PEPCategory:          cls.PEPCategory,
		AdverseMediaSeverity: cls.AdverseMediaSeverity,
		MatchedRecords:       records,
		Reviewer:             actor,
		ScreenedAt:           at,
	}
	reasons := cls.Reasons
	if subj.HasPEPOwner() && !result.PEP {
		result.PEP = true
		result.PEPCategory = models.PEPUnspecified
		reasons = append(reasons, "declared PEP beneficial owner")
	}
	assessment := o.scorer.Score(risk.Input{
		Subject:         subj,
		Screening:       result,
		DocumentQuality: models.AssessDocumentQuality(subj.RequiredDocuments(), docs),
		AsOf:            at,
	})
	result.HighRiskCountry = assessment.HighRiskCountry
	result.RiskScore = assessment.OverallScore
	result.RiskLevel = assessment.Level
	result.Factors = assessment.Factors
	result.Weights = assessment.Weights
	result.DeriveKYCStatus()

	if result.HighRiskCountry {
		reasons = append(reasons, "high-risk jurisdiction")
	}
	result.Notes = notes(reasons, assessment)
	return result, reasons
}

// advance moves the case out of SCREENING according to the KYC status and
// returns the transitions taken.
func (o *Orchestrator) advance(c *workflow.Case, subj *models.Subject, docs []*models.Document, result *models.ScreeningResult, reasons []string, actor string, at time.Time) ([]workflow.HistoryEntry, error) {
	facts := workflow.Facts{Requirements: subj.RequiredDocuments(), Documents: docs, Governing: result}
	before := len(c.History())

	switch result.KYCStatus {
	case models.KYCRejected:
		reason := strings.Join(reasons, "; ")
		if reason == "" {
			reason = "sanctions or blacklist match"
		}
		if err := workflow.Transition(c, workflow.Request{
			To: models.StateRejected, Actor: actor, Reason: reason, Notes: "automatic rejection", At: at, Facts: facts,
		}); err != nil {
			return nil, err
		}
	case models.KYCVerified:
		if err := workflow.Transition(c, workflow.Request{
			To: models.StateApprovalPending, Actor: actor, Notes: "screening clear", At: at, Facts: facts,
		}); err != nil {
			return nil, err
		}
		err := workflow.Transition(c, workflow.Request{
			To: models.StateApproved, Actor: actor, Notes: "automatic approval", At: at, Facts: facts,
		})
		var te *workflow.TransitionError
		switch {
		case errors.As(err, &te) && te.Kind == workflow.KindMissingRequiredDocuments:
			result.Notes += "\nApproval deferred: missing " + strings.Join(te.Missing, ", ")
		case err != nil:
			return nil, err
		}
	default:
		note := "manual review required"
		if result.EnhancedDueDiligence {
			note = "enhanced due diligence required"
		}
		if err := workflow.Transition(c, workflow.Request{
			To: models.StateApprovalPending, Actor: actor, Notes: note, At: at, Facts: facts,
		}); err != nil {
			return nil, err
		}
	}
	return c.History()[before:], nil
}

func (o *Orchestrator) recordTransition(ctx context.Context, subjectID id.SubjectID, from, to models.State, actor, reason string, at time.Time) error {
	o.metrics.IncTransition(string(from), string(to))
	return o.emit(ctx, audit.ComplianceEvent{
		Timestamp: at,
		SubjectID: subjectID,
		Action:    audit.EventCaseTransitioned,
		Decision:  string(to),
		Reason:    reason,
		ActorID:   actor,
	})
}

func (o *Orchestrator) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if o.auditor == nil {
		return nil
	}
	return o.auditor.Emit(ctx, event)
}

// publish delivers the alert after commit; a delivery failure is logged and
// does not undo the committed decision.
func (o *Orchestrator) publish(ctx context.Context, a ports.Alert) {
	if o.alerts == nil {
		return
	}
	if err := o.alerts.Publish(ctx, a); err != nil {
		o.logger.ErrorContext(ctx, "alert delivery failed",
			"subject_id", a.SubjectID,
			"title", a.Title,
			"error", err,
		)
		return
	}
	o.metrics.IncAlert(string(a.Severity))
}

func subjectError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "subject not found")
	}
	return fmt.Errorf("load subject: %w", err)
}
