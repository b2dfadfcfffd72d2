// Package report assembles the audit snapshot written when a case reaches a
// terminal decision and hands it to the external renderer.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
)

const noReason = "No specific reason provided."

// Builder writes Reports inside the caller's catalog transaction.
type Builder struct {
	renderer ports.ReportRenderer
	auditor  ports.AuditEmitter
	logger   *slog.Logger
	token    func() string
}

type Option func(*Builder)

func WithRenderer(r ports.ReportRenderer) Option {
	return func(b *Builder) {
		if r != nil {
			b.renderer = r
		}
	}
}

func WithAuditor(a ports.AuditEmitter) Option {
	return func(b *Builder) {
		b.auditor = a
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTokenSource overrides the report number token generator.
func WithTokenSource(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.token = fn
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		renderer: JSONRenderer{},
		logger:   slog.Default(),
		token:    randomToken,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// randomToken is 8 lower-hex characters of a fresh UUID.
func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Build writes the report for the case's current terminal cycle. A current
// report from an earlier cycle is superseded first; one from this cycle is
// regenerated in place under its existing number, so each terminal cycle
// has exactly one report.
// governing may be nil when the case was decided without a screening.
func (b *Builder) Build(ctx context.Context, tx ports.Store, subj *models.Subject, c *workflow.Case, governing *models.ScreeningResult, actor string, at time.Time) (*models.Report, error) {
	decision, ok := c.State().Decision()
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot generate report: case is %s, not approved or rejected", c.State()))
	}

	rep := &models.Report{
		ID:             id.NewReportID(),
		ReportNumber:   subj.Variant().ReportPrefix() + "-" + b.token(),
		SubjectID:      subj.ID,
		Variant:        subj.Variant(),
		Decision:       decision,
		DecisionReason: decisionReason(c),
		Summary:        summary(subj, decision),
		RiskAssessment: riskAssessment(governing),
		Cycle:          c.Cycle(),
		GeneratedBy:    actor,
		GeneratedAt:    at,
	}

	current, err := tx.CurrentReport(ctx, subj.ID)
	switch {
	case err == nil && current.Cycle == c.Cycle():
		rep.ID, rep.ReportNumber = current.ID, current.ReportNumber
	case err == nil:
		current.Supersede(at)
		if err := tx.SaveReport(ctx, current); err != nil {
			return nil, fmt.Errorf("supersede report %s: %w", current.ReportNumber, err)
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("load current report: %w", err)
	}

	if governing != nil {
		rid := governing.ID
		rep.ResultID = &rid
		rep.Sanctions = governing.Sanctions
		rep.PEP = governing.PEP
		rep.AdverseMedia = governing.AdverseMedia
		rep.EnhancedDueDiligence = governing.EnhancedDueDiligence
	}
	if err := tx.SaveReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	if b.auditor != nil {
		if err := b.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: at,
			SubjectID: subj.ID,
			Action:    audit.EventReportGenerated,
			Decision:  string(decision),
			Reason:    rep.ReportNumber,
			ActorID:   actor,
		}); err != nil {
			return nil, err
		}
	}
	b.logger.InfoContext(ctx, "report generated",
		"subject_id", subj.ID,
		"report_id", rep.ReportNumber,
		"decision", decision,
	)
	return rep, nil
}

// Render hands the report to the configured renderer.
func (b *Builder) Render(ctx context.Context, r *models.Report) ([]byte, string, error) {
	return b.renderer.Render(ctx, r)
}

func decisionReason(c *workflow.Case) string {
	if c.State() == models.StateRejected && c.RejectionReason() != "" {
		return c.RejectionReason()
	}
	if notes := c.ReviewerNotes(); notes != "" {
		return notes
	}
	return noReason
}

func summary(subj *models.Subject, decision models.Decision) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "KYC Report for %s (ID: %s)\n", subj.DisplayName(), subj.ExternalID)
	switch subj.Variant() {
	case models.VariantBusiness:
		biz := subj.Business
		fmt.Fprintf(&sb, "Registration Number: %s\n", biz.RegistrationNumber)
		fmt.Fprintf(&sb, "Country of Registration: %s\n", biz.RegistrationCountry)
		if biz.Sector != "" {
			fmt.Fprintf(&sb, "Sector: %s\n", biz.Sector)
		}
		fmt.Fprintf(&sb, "Beneficial Owners: %d\n", len(biz.BeneficialOwners))
	default:
		ind := subj.Individual
		fmt.Fprintf(&sb, "Nationality: %s\n", ind.Nationality)
		if ind.DateOfBirth != nil {
			fmt.Fprintf(&sb, "Date of Birth: %s\n", ind.DateOfBirth.Format(time.DateOnly))
		}
		fmt.Fprintf(&sb, "ID Document: %s (%s)\n", ind.ID.Kind, ind.ID.Number)
	}
	fmt.Fprintf(&sb, "Decision: %s", decision)
	return sb.String()
}

func riskAssessment(r *models.ScreeningResult) string {
	var sb strings.Builder
	sb.WriteString("Risk Assessment:\n")
	if r == nil {
		sb.WriteString("No risk assessment was performed.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Risk Level: %s (score %.2f)\n", r.RiskLevel, r.RiskScore)
	lines := []struct {
		label string
		hit   bool
	}{
		{"Sanctions List Match", r.Sanctions},
		{"Politically Exposed Person", r.PEP},
		{"Watchlist Match", r.Watchlist},
		{"Adverse Media", r.AdverseMedia},
		{"Blacklist", r.Blacklist},
		{"Fraud", r.Fraud},
		{"Financial Crime", r.FinancialCrime},
		{"High-Risk Jurisdiction", r.HighRiskCountry},
	}
	for _, l := range lines {
		fmt.Fprintf(&sb, "- %s: %s\n", l.label, yesNo(l.hit))
	}
	if r.EnhancedDueDiligence {
		sb.WriteString("Enhanced due diligence was required and performed.\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
