package ports

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

import (
	"context"
	"time"

	"kyccase/internal/kyc/models"
	id "kyccase/pkg/domain"
	audit "kyccase/pkg/platform/audit"
)

// IndividualQuery asks the vendor to screen a natural person.
type IndividualQuery struct {
	Names    []string
	DOB      *time.Time
	Gender   string
	Includes []models.SourceType
	Fuzzy    bool
}

// EntityQuery asks the vendor to screen a legal entity.
type EntityQuery struct {
	Names     []string
	SearchAll bool
	Includes  []models.SourceType
	Fuzzy     bool
}

// CheckResult is the normalized vendor response.
type CheckResult struct {
	TotalHits int
	Records   []models.MatchedRecord
}

// VendorReport is a rendered vendor-side due diligence report.
type VendorReport struct {
	PDFBase64 string
}

// Source is one list the vendor screens against.
type Source struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	SourceType models.SourceType `json:"source_type"`
	Country    string            `json:"country,omitempty"`
}

// ScreeningClient is the external sanctions, PEP, and criminal list vendor.
type ScreeningClient interface {
	// Configured fails with ConfigurationMissing when no call can succeed.
	Configured() error
	CheckIndividual(ctx context.Context, q IndividualQuery) (*CheckResult, error)
	CheckEntity(ctx context.Context, q EntityQuery) (*CheckResult, error)
	GenerateIndividualReport(ctx context.Context, q IndividualQuery) (*VendorReport, error)
	GenerateEntityReport(ctx context.Context, q EntityQuery) (*VendorReport, error)
	ListSources(ctx context.Context) ([]Source, error)
}

// AlertSeverity routes an alert.
type AlertSeverity string

const (
	AlertHigh   AlertSeverity = "HIGH"
	AlertMedium AlertSeverity = "MEDIUM"
	AlertLow    AlertSeverity = "LOW"
)

// Alert is a compliance notification about a screening outcome or document expiry.
type Alert struct {
	SubjectID   id.SubjectID  `json:"subject_id"`
	ExternalID  string        `json:"external_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    AlertSeverity `json:"severity"`
	Reasons     []string      `json:"reasons,omitempty"`
	RaisedAt    time.Time     `json:"raised_at"`
}

// AlertPublisher delivers alerts to the compliance team.
type AlertPublisher interface {
	Publish(ctx context.Context, a Alert) error
}

// SubjectLocker serializes work per Subject across goroutines and replicas.
// Acquire blocks until the lock is held or ctx ends; the returned func releases it.
type SubjectLocker interface {
	Acquire(ctx context.Context, subjectID id.SubjectID) (release func(), err error)
}

// ReportRenderer turns a Report into a deliverable document.
type ReportRenderer interface {
	Render(ctx context.Context, r *models.Report) (content []byte, contentType string, err error)
}

// AuditEmitter records compliance events. Emit joins the catalog
// transaction carried in ctx and fails closed.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}
