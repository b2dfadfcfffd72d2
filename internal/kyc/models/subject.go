package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
)

var countryCode = regexp.MustCompile(`^[A-Z]{2}$`)

// IDDescriptor describes a government identity document held by a person.
type IDDescriptor struct {
	Kind           DocumentKind `json:"kind,omitempty"`
	Number         string       `json:"number,omitempty"`
	IssuingCountry string       `json:"issuing_country,omitempty"`
	ExpiryDate     *time.Time   `json:"expiry_date,omitempty"`
}

// Individual is the person variant of a Subject.
type Individual struct {
	FullName         string              `json:"full_name"`
	DateOfBirth      *time.Time          `json:"date_of_birth,omitempty"`
	Gender           string              `json:"gender,omitempty"`
	Nationality      string              `json:"nationality,omitempty"`
	ID               IDDescriptor        `json:"id_document"`
	ResidenceCountry string              `json:"residence_country,omitempty"`
	SourceOfFunds    string              `json:"source_of_funds,omitempty"`
	Occupation       string              `json:"occupation,omitempty"`
	AnnualIncome     decimal.NullDecimal `json:"annual_income"`
}

// BeneficialOwner is a natural person ultimately owning or controlling a business.
type BeneficialOwner struct {
	Name                string          `json:"name"`
	Nationality         string          `json:"nationality,omitempty"`
	ID                  IDDescriptor    `json:"id_document"`
	OwnershipPercentage decimal.Decimal `json:"ownership_percentage"`
	PEP                 bool            `json:"pep"`
}

// Business is the legal-entity variant of a Subject.
type Business struct {
	LegalName           string            `json:"legal_name"`
	RegistrationNumber  string            `json:"registration_number,omitempty"`
	RegistrationCountry string            `json:"registration_country,omitempty"`
	Sector              string            `json:"sector,omitempty"`
	SourceOfFunds       string            `json:"source_of_funds,omitempty"`
	RevenueBucket       string            `json:"annual_revenue_bucket,omitempty"`
	VolumeBucket        string            `json:"transaction_volume_bucket,omitempty"`
	BeneficialOwners    []BeneficialOwner `json:"beneficial_owners,omitempty"`
}

// TransactionActivity holds observed and expected annual volume when known.
type TransactionActivity struct {
	Observed decimal.NullDecimal `json:"observed"`
	Expected decimal.NullDecimal `json:"expected"`
}

// Subject is a customer under KYC review. Exactly one of Individual and
// Business is set; Variant reports which.
//
// Invariants:
//   - ExternalID is non-empty
//   - exactly one variant payload is present
//   - a non-draft subject passes ValidateForSubmission
//   - CompletionPercentage is recomputed on every Touch
type Subject struct {
	ID                   id.SubjectID        `json:"id"`
	ExternalID           string              `json:"external_id"`
	Email                string              `json:"email,omitempty"`
	IsDraft              bool                `json:"is_draft"`
	CompletionPercentage int                 `json:"completion_percentage"`
	Individual           *Individual         `json:"individual,omitempty"`
	Business             *Business           `json:"business,omitempty"`
	Activity             TransactionActivity `json:"transaction_activity"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// NewIndividualSubject builds a draft individual subject.
func NewIndividualSubject(subjectID id.SubjectID, externalID, email string, ind Individual, now time.Time) (*Subject, error) {
	s := &Subject{
		ID:         subjectID,
		ExternalID: strings.TrimSpace(externalID),
		Email:      normalizeEmail(email),
		IsDraft:    true,
		Individual: &ind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewBusinessSubject builds a draft business subject.
func NewBusinessSubject(subjectID id.SubjectID, externalID, email string, biz Business, now time.Time) (*Subject, error) {
	s := &Subject{
		ID:         subjectID,
		ExternalID: strings.TrimSpace(externalID),
		Email:      normalizeEmail(email),
		IsDraft:    true,
		Business:   &biz,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subject) init() error {
	if s.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "subject id is required")
	}
	if s.ExternalID == "" {
		return dErrors.New(dErrors.CodeValidation, "external_id is required")
	}
	if len(s.ExternalID) > 64 {
		return dErrors.New(dErrors.CodeValidation, "external_id must be 64 characters or less")
	}
	s.normalize()
	if err := s.validateCountries(); err != nil {
		return err
	}
	s.CompletionPercentage = s.computeCompletion()
	return nil
}

// Variant reports which payload the subject carries.
func (s *Subject) Variant() Variant {
	if s.Business != nil {
		return VariantBusiness
	}
	return VariantIndividual
}

// DisplayName is the person's full name or the business legal name.
func (s *Subject) DisplayName() string {
	switch s.Variant() {
	case VariantBusiness:
		return s.Business.LegalName
	default:
		return s.Individual.FullName
	}
}

// IDDocumentNumber returns the individual's ID number, empty for businesses.
func (s *Subject) IDDocumentNumber() string {
	if s.Individual == nil {
		return ""
	}
	return s.Individual.ID.Number
}

// RegistrationNumber returns the business registration number, empty for individuals.
func (s *Subject) RegistrationNumber() string {
	if s.Business == nil {
		return ""
	}
	return s.Business.RegistrationNumber
}

// RiskCountries lists the jurisdictions rated by the country factor.
func (s *Subject) RiskCountries() []string {
	var out []string
	switch s.Variant() {
	case VariantBusiness:
		out = appendNonEmpty(out, s.Business.RegistrationCountry)
	default:
		out = appendNonEmpty(out, s.Individual.ResidenceCountry, s.Individual.Nationality)
	}
	return out
}

// PrimaryIDExpiry returns the expiry of the individual's primary ID document.
func (s *Subject) PrimaryIDExpiry() *time.Time {
	if s.Individual == nil {
		return nil
	}
	return s.Individual.ID.ExpiryDate
}

// HasPEPOwner reports whether any declared beneficial owner is a PEP.
func (s *Subject) HasPEPOwner() bool {
	if s.Business == nil {
		return false
	}
	for _, o := range s.Business.BeneficialOwners {
		if o.PEP {
			return true
		}
	}
	return false
}

// ValidateForSubmission enforces the fields a non-draft subject must carry.
func (s *Subject) ValidateForSubmission() error {
	if s.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required before submission")
	}
	switch s.Variant() {
	case VariantBusiness:
		b := s.Business
		if b.LegalName == "" {
			return dErrors.New(dErrors.CodeValidation, "legal_name is required before submission")
		}
		if b.RegistrationNumber == "" {
			return dErrors.New(dErrors.CodeValidation, "registration_number is required before submission")
		}
		if b.RegistrationCountry == "" {
			return dErrors.New(dErrors.CodeValidation, "registration_country is required before submission")
		}
		total := decimal.Zero
		for _, o := range b.BeneficialOwners {
			if o.OwnershipPercentage.IsNegative() {
				return dErrors.New(dErrors.CodeValidation, "ownership_percentage must not be negative")
			}
			total = total.Add(o.OwnershipPercentage)
		}
		if total.GreaterThan(decimal.NewFromInt(100)) {
			return dErrors.New(dErrors.CodeValidation, "beneficial ownership exceeds 100 percent")
		}
	default:
		ind := s.Individual
		if ind.FullName == "" {
			return dErrors.New(dErrors.CodeValidation, "full_name is required before submission")
		}
		if ind.ID.Number == "" {
			return dErrors.New(dErrors.CodeValidation, "id document number is required before submission")
		}
		if ind.ResidenceCountry == "" && ind.Nationality == "" {
			return dErrors.New(dErrors.CodeValidation, "residence_country or nationality is required before submission")
		}
	}
	return nil
}

// ApplySubmission clears the draft flag. Call ValidateForSubmission first.
func (s *Subject) ApplySubmission(now time.Time) {
	s.IsDraft = false
	s.UpdatedAt = now
}

// Touch renormalizes and recomputes derived fields after an edit.
func (s *Subject) Touch(now time.Time) error {
	s.normalize()
	if err := s.validateCountries(); err != nil {
		return err
	}
	s.CompletionPercentage = s.computeCompletion()
	s.UpdatedAt = now
	return nil
}

func (s *Subject) normalize() {
	s.Email = normalizeEmail(s.Email)
	if s.Individual != nil {
		ind := s.Individual
		ind.FullName = strings.Join(strings.Fields(ind.FullName), " ")
		ind.Nationality = upper(ind.Nationality)
		ind.ResidenceCountry = upper(ind.ResidenceCountry)
		ind.ID.Number = strings.TrimSpace(ind.ID.Number)
		ind.ID.IssuingCountry = upper(ind.ID.IssuingCountry)
	}
	if s.Business != nil {
		b := s.Business
		b.LegalName = strings.Join(strings.Fields(b.LegalName), " ")
		b.RegistrationNumber = strings.TrimSpace(b.RegistrationNumber)
		b.RegistrationCountry = upper(b.RegistrationCountry)
		for i := range b.BeneficialOwners {
			b.BeneficialOwners[i].Nationality = upper(b.BeneficialOwners[i].Nationality)
			b.BeneficialOwners[i].ID.IssuingCountry = upper(b.BeneficialOwners[i].ID.IssuingCountry)
		}
	}
}

func (s *Subject) validateCountries() error {
	var codes []string
	if s.Individual != nil {
		codes = append(codes, s.Individual.Nationality, s.Individual.ResidenceCountry, s.Individual.ID.IssuingCountry)
	}
	if s.Business != nil {
		codes = append(codes, s.Business.RegistrationCountry)
		for _, o := range s.Business.BeneficialOwners {
			codes = append(codes, o.Nationality)
		}
	}
	for _, c := range codes {
		if c != "" && !countryCode.MatchString(c) {
			return dErrors.New(dErrors.CodeValidation, "country codes must be ISO 3166 alpha-2: "+c)
		}
	}
	return nil
}

// computeCompletion is floor(filled/total*100) over the variant checklist.
func (s *Subject) computeCompletion() int {
	var checklist []bool
	switch s.Variant() {
	case VariantBusiness:
		b := s.Business
		checklist = []bool{
			b.LegalName != "",
			b.RegistrationNumber != "",
			b.RegistrationCountry != "",
			b.Sector != "",
			s.Email != "",
			b.SourceOfFunds != "",
			b.RevenueBucket != "",
			b.VolumeBucket != "",
			len(b.BeneficialOwners) > 0,
		}
	default:
		ind := s.Individual
		checklist = []bool{
			ind.FullName != "",
			ind.DateOfBirth != nil,
			ind.Nationality != "",
			ind.ID.Kind != "",
			ind.ID.Number != "",
			ind.ID.IssuingCountry != "",
			s.Email != "",
			ind.ResidenceCountry != "",
			ind.Occupation != "",
			ind.SourceOfFunds != "",
		}
	}
	filled := 0
	for _, ok := range checklist {
		if ok {
			filled++
		}
	}
	return filled * 100 / len(checklist)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func appendNonEmpty(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}
