// Package ports declares the boundaries the case engine depends on. Adapters
// live in store, vendor, alert, and lock; tests use the mocks package.
package ports

import (
	"context"
	"time"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
)

// CaseFilter narrows ListCases. Zero values match everything; Limit 0 is unbounded.
type CaseFilter struct {
	State       models.State
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

// Store is the catalog of subjects, documents, cases, screening results,
// and reports. Reads and writes return sentinel.ErrNotFound for missing rows
// and sentinel.ErrConflict for uniqueness violations.
type Store interface {
	CreateSubject(ctx context.Context, s *models.Subject) error
	UpdateSubject(ctx context.Context, s *models.Subject) error
	GetSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
	// FindSubjectByIdentifier matches an ID-document number, then a business
	// registration number, then an external ID.
	FindSubjectByIdentifier(ctx context.Context, identifier string) (*models.Subject, error)
	ListSubjectsCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Subject, error)
	ListIndividualsWithIDExpiryBefore(ctx context.Context, before time.Time) ([]*models.Subject, error)

	SaveDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	ListDocuments(ctx context.Context, subjectID id.SubjectID) ([]*models.Document, error)

	SaveCase(ctx context.Context, c *workflow.Case) error
	GetCase(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error)
	// GetCaseForUpdate is GetCase with a row lock held until the transaction ends.
	GetCaseForUpdate(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]*workflow.Case, error)

	SaveResult(ctx context.Context, r *models.ScreeningResult) error
	LatestResult(ctx context.Context, subjectID id.SubjectID) (*models.ScreeningResult, error)
	DeleteResults(ctx context.Context, subjectID id.SubjectID) (int, error)

	SaveReport(ctx context.Context, r *models.Report) error
	CurrentReport(ctx context.Context, subjectID id.SubjectID) (*models.Report, error)
	ListReports(ctx context.Context, subjectID id.SubjectID) ([]*models.Report, error)
}

// Catalog is a Store that can run a unit of work atomically. The ctx handed
// to fn carries the transaction so other stores can join it.
type Catalog interface {
	Store
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
