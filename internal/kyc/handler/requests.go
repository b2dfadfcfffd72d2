package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/service"
	dErrors "kyccase/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// IDDocumentRequest describes the identity document a person holds.
type IDDocumentRequest struct {
	Kind           string `json:"kind" validate:"omitempty,max=32"`
	Number         string `json:"number" validate:"max=64"`
	IssuingCountry string `json:"issuing_country" validate:"omitempty,len=2"`
	ExpiryDate     string `json:"expiry_date"`

	parsed models.IDDescriptor
}

func (r *IDDocumentRequest) validate() error {
	r.parsed = models.IDDescriptor{
		Number:         strings.TrimSpace(r.Number),
		IssuingCountry: r.IssuingCountry,
	}
	if r.Kind != "" {
		kind, err := models.ParseDocumentKind(r.Kind)
		if err != nil {
			return err
		}
		if !kind.IsIdentity() {
			return dErrors.New(dErrors.CodeValidation, "id_document.kind must be an identity document")
		}
		r.parsed.Kind = kind
	}
	expiry, err := parseDate(r.ExpiryDate, "id_document.expiry_date")
	if err != nil {
		return err
	}
	r.parsed.ExpiryDate = expiry
	return nil
}

type IndividualRequest struct {
	FullName         string            `json:"full_name" validate:"required,max=200"`
	DateOfBirth      string            `json:"date_of_birth"`
	Gender           string            `json:"gender" validate:"omitempty,oneof=male female other"`
	Nationality      string            `json:"nationality" validate:"omitempty,len=2"`
	IDDocument       IDDocumentRequest `json:"id_document"`
	ResidenceCountry string            `json:"residence_country" validate:"omitempty,len=2"`
	SourceOfFunds    string            `json:"source_of_funds" validate:"max=200"`
	Occupation       string            `json:"occupation" validate:"max=200"`
	AnnualIncome     *decimal.Decimal  `json:"annual_income"`
}

func (r *IndividualRequest) toModel() (*models.Individual, error) {
	dob, err := parseDate(r.DateOfBirth, "date_of_birth")
	if err != nil {
		return nil, err
	}
	if err := r.IDDocument.validate(); err != nil {
		return nil, err
	}
	if r.AnnualIncome != nil && r.AnnualIncome.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "annual_income must not be negative")
	}
	return &models.Individual{
		FullName:         strings.TrimSpace(r.FullName),
		DateOfBirth:      dob,
		Gender:           r.Gender,
		Nationality:      r.Nationality,
		ID:               r.IDDocument.parsed,
		ResidenceCountry: r.ResidenceCountry,
		SourceOfFunds:    strings.TrimSpace(r.SourceOfFunds),
		Occupation:       strings.TrimSpace(r.Occupation),
		AnnualIncome:     nullable(r.AnnualIncome),
	}, nil
}

type OwnerRequest struct {
	Name                string            `json:"name" validate:"required,max=200"`
	Nationality         string            `json:"nationality" validate:"omitempty,len=2"`
	IDDocument          IDDocumentRequest `json:"id_document"`
	OwnershipPercentage decimal.Decimal   `json:"ownership_percentage"`
	PEP                 bool              `json:"pep"`
}

type BusinessRequest struct {
	LegalName           string         `json:"legal_name" validate:"required,max=200"`
	RegistrationNumber  string         `json:"registration_number" validate:"max=64"`
	RegistrationCountry string         `json:"registration_country" validate:"omitempty,len=2"`
	Sector              string         `json:"sector" validate:"max=100"`
	SourceOfFunds       string         `json:"source_of_funds" validate:"max=200"`
	RevenueBucket       string         `json:"annual_revenue_bucket" validate:"max=64"`
	VolumeBucket        string         `json:"transaction_volume_bucket" validate:"max=64"`
	BeneficialOwners    []OwnerRequest `json:"beneficial_owners" validate:"max=50,dive"`
}

func (r *BusinessRequest) toModel() (*models.Business, error) {
	biz := &models.Business{
		LegalName:           strings.TrimSpace(r.LegalName),
		RegistrationNumber:  strings.TrimSpace(r.RegistrationNumber),
		RegistrationCountry: r.RegistrationCountry,
		Sector:              strings.TrimSpace(r.Sector),
		SourceOfFunds:       strings.TrimSpace(r.SourceOfFunds),
		RevenueBucket:       r.RevenueBucket,
		VolumeBucket:        r.VolumeBucket,
	}
	for i := range r.BeneficialOwners {
		o := &r.BeneficialOwners[i]
		if o.OwnershipPercentage.IsNegative() || o.OwnershipPercentage.GreaterThan(decimal.NewFromInt(100)) {
			return nil, dErrors.New(dErrors.CodeValidation, "ownership_percentage must be between 0 and 100")
		}
		if err := o.IDDocument.validate(); err != nil {
			return nil, err
		}
		biz.BeneficialOwners = append(biz.BeneficialOwners, models.BeneficialOwner{
			Name:                strings.TrimSpace(o.Name),
			Nationality:         o.Nationality,
			ID:                  o.IDDocument.parsed,
			OwnershipPercentage: o.OwnershipPercentage,
			PEP:                 o.PEP,
		})
	}
	return biz, nil
}

type ActivityRequest struct {
	Observed *decimal.Decimal `json:"observed"`
	Expected *decimal.Decimal `json:"expected"`
}

func (r *ActivityRequest) toModel() (models.TransactionActivity, error) {
	if (r.Observed != nil && r.Observed.IsNegative()) || (r.Expected != nil && r.Expected.IsNegative()) {
		return models.TransactionActivity{}, dErrors.New(dErrors.CodeValidation, "transaction activity must not be negative")
	}
	return models.TransactionActivity{Observed: nullable(r.Observed), Expected: nullable(r.Expected)}, nil
}

// CreateSubjectRequest is the body of POST /subjects.
type CreateSubjectRequest struct {
	ExternalID string             `json:"external_id" validate:"required,max=64"`
	Email      string             `json:"email" validate:"omitempty,email,max=254"`
	Individual *IndividualRequest `json:"individual"`
	Business   *BusinessRequest   `json:"business"`
	Activity   *ActivityRequest   `json:"transaction_activity"`

	parsed service.NewSubject
}

// Validate parses the variant payload. Implements httputil.Validatable.
func (r *CreateSubjectRequest) Validate() error {
	if (r.Individual == nil) == (r.Business == nil) {
		return dErrors.New(dErrors.CodeValidation, "exactly one of individual or business is required")
	}
	r.parsed = service.NewSubject{ExternalID: strings.TrimSpace(r.ExternalID), Email: r.Email}
	var err error
	if r.Individual != nil {
		if r.parsed.Individual, err = r.Individual.toModel(); err != nil {
			return err
		}
	}
	if r.Business != nil {
		if r.parsed.Business, err = r.Business.toModel(); err != nil {
			return err
		}
	}
	if r.Activity != nil {
		if r.parsed.Activity, err = r.Activity.toModel(); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreateSubjectRequest) ToNewSubject() service.NewSubject {
	return r.parsed
}

// UpdateSubjectRequest is the body of PATCH /subjects/{id}. Absent fields
// are left unchanged.
type UpdateSubjectRequest struct {
	Email      *string            `json:"email" validate:"omitempty,email,max=254"`
	Individual *IndividualRequest `json:"individual"`
	Business   *BusinessRequest   `json:"business"`
	Activity   *ActivityRequest   `json:"transaction_activity"`

	parsed service.SubjectPatch
}

func (r *UpdateSubjectRequest) Validate() error {
	if r.Email == nil && r.Individual == nil && r.Business == nil && r.Activity == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	r.parsed = service.SubjectPatch{Email: r.Email}
	var err error
	if r.Individual != nil {
		if r.parsed.Individual, err = r.Individual.toModel(); err != nil {
			return err
		}
	}
	if r.Business != nil {
		if r.parsed.Business, err = r.Business.toModel(); err != nil {
			return err
		}
	}
	if r.Activity != nil {
		activity, err := r.Activity.toModel()
		if err != nil {
			return err
		}
		r.parsed.Activity = &activity
	}
	return nil
}

func (r *UpdateSubjectRequest) ToPatch() service.SubjectPatch {
	return r.parsed
}

// UploadDocumentRequest is the body of POST /subjects/{id}/documents.
type UploadDocumentRequest struct {
	Kind             string `json:"kind" validate:"required"`
	FileRef          string `json:"file_ref" validate:"required,max=512"`
	IssueDate        string `json:"issue_date"`
	ExpiryDate       string `json:"expiry_date"`
	IssuingAuthority string `json:"issuing_authority" validate:"max=200"`

	parsed service.NewDocument
}

func (r *UploadDocumentRequest) Validate() error {
	kind, err := models.ParseDocumentKind(r.Kind)
	if err != nil {
		return err
	}
	issue, err := parseDate(r.IssueDate, "issue_date")
	if err != nil {
		return err
	}
	expiry, err := parseDate(r.ExpiryDate, "expiry_date")
	if err != nil {
		return err
	}
	r.parsed = service.NewDocument{
		Kind:             kind,
		FileRef:          r.FileRef,
		IssueDate:        issue,
		ExpiryDate:       expiry,
		IssuingAuthority: r.IssuingAuthority,
	}
	return nil
}

func (r *UploadDocumentRequest) ToNewDocument() service.NewDocument {
	return r.parsed
}

type VerifyDocumentRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type RejectDocumentRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ReviewRequest is the body of POST /subjects/{id}/review.
type ReviewRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" validate:"max=2000"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type ReopenRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type AssignRequest struct {
	Assignee string `json:"assignee" validate:"required,max=128"`
}

// TransitionRequest is the body of POST /subjects/{id}/transitions.
type TransitionRequest struct {
	To     string `json:"to" validate:"required"`
	Notes  string `json:"notes" validate:"max=2000"`
	Reason string `json:"reason" validate:"max=2000"`

	parsedState models.State
}

func (r *TransitionRequest) Validate() error {
	st, err := models.ParseState(r.To)
	if err != nil {
		return err
	}
	r.parsedState = st
	return nil
}

func (r *TransitionRequest) ParsedState() models.State {
	return r.parsedState
}

func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
