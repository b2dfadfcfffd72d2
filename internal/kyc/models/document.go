package models

import (
	"strings"
	"time"

	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
)

// Document is a supporting file attached to a Subject.
//
// Invariants:
//   - Status is REJECTED iff RejectionReason is set
//   - Status is VERIFIED iff VerifiedBy and VerifiedAt are set
//   - only PENDING documents can be verified or rejected
type Document struct {
	ID                id.DocumentID  `json:"id"`
	SubjectID         id.SubjectID   `json:"subject_id"`
	Kind              DocumentKind   `json:"kind"`
	FileRef           string         `json:"file_ref"`
	Status            DocumentStatus `json:"status"`
	IssueDate         *time.Time     `json:"issue_date,omitempty"`
	ExpiryDate        *time.Time     `json:"expiry_date,omitempty"`
	IssuingAuthority  string         `json:"issuing_authority,omitempty"`
	VerifiedBy        string         `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time     `json:"verified_at,omitempty"`
	VerificationNotes string         `json:"verification_notes,omitempty"`
	RejectionReason   string         `json:"rejection_reason,omitempty"`
	UploadedAt        time.Time      `json:"uploaded_at"`
}

// NewDocument builds a PENDING document.
func NewDocument(docID id.DocumentID, subjectID id.SubjectID, kind DocumentKind, fileRef string, issue, expiry *time.Time, authority string, now time.Time) (*Document, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires a subject")
	}
	if _, ok := documentKinds[kind]; !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported document kind: "+string(kind))
	}
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file_ref is required")
	}
	if issue != nil && expiry != nil && expiry.Before(*issue) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry_date precedes issue_date")
	}
	return &Document{
		ID:               docID,
		SubjectID:        subjectID,
		Kind:             kind,
		FileRef:          fileRef,
		Status:           DocumentPending,
		IssueDate:        issue,
		ExpiryDate:       expiry,
		IssuingAuthority: strings.TrimSpace(authority),
		UploadedAt:       now,
	}, nil
}

// CanReview reports whether the document still awaits a verification decision.
func (d *Document) CanReview() error {
	if d.Status != DocumentPending {
		return dErrors.New(dErrors.CodeInvalidState, "document already "+strings.ToLower(string(d.Status)))
	}
	return nil
}

// Verify marks the document verified by verifier.
func (d *Document) Verify(verifier, notes string, now time.Time) error {
	if err := d.CanReview(); err != nil {
		return err
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return dErrors.New(dErrors.CodeValidation, "verifier is required")
	}
	d.Status = DocumentVerified
	d.VerifiedBy = verifier
	d.VerifiedAt = &now
	d.VerificationNotes = strings.TrimSpace(notes)
	return nil
}

// Reject marks the document rejected with a reason. The reviewer is kept in
// the notes since VerifiedBy is reserved for verified documents.
func (d *Document) Reject(reviewer, reason string, now time.Time) error {
	if err := d.CanReview(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	d.Status = DocumentRejected
	d.RejectionReason = reason
	d.VerificationNotes = "rejected by " + strings.TrimSpace(reviewer)
	return nil
}

// IsExpired reports whether the document expired before asOf.
func (d *Document) IsExpired(asOf time.Time) bool {
	return d.ExpiryDate != nil && d.ExpiryDate.Before(asOf)
}

// Requirement is a slot that any VERIFIED document of one of Kinds fills.
type Requirement struct {
	Name  string
	Kinds []DocumentKind
}

var (
	individualRequirements = []Requirement{
		{Name: "identity", Kinds: []DocumentKind{DocPassport, DocNationalID, DocDriverLicense, DocResidencePermit}},
		{Name: "proof_of_address", Kinds: []DocumentKind{DocUtilityBill, DocBankStatement}},
	}
	businessRequirements = []Requirement{
		{Name: "business_registration", Kinds: []DocumentKind{DocBusinessRegistration}},
		{Name: "tax_certificate", Kinds: []DocumentKind{DocTaxCertificate}},
	}
)

// RequiredDocuments returns the document slots the variant must fill before approval.
func (s *Subject) RequiredDocuments() []Requirement {
	if s.Variant() == VariantBusiness {
		return businessRequirements
	}
	return individualRequirements
}

// MissingRequirements names every requirement not filled by a VERIFIED document.
func MissingRequirements(reqs []Requirement, docs []*Document) []string {
	var missing []string
	for _, req := range reqs {
		if !requirementMet(req, docs) {
			missing = append(missing, req.Name)
		}
	}
	return missing
}

func requirementMet(req Requirement, docs []*Document) bool {
	for _, d := range docs {
		if d.Status != DocumentVerified {
			continue
		}
		for _, k := range req.Kinds {
			if d.Kind == k {
				return true
			}
		}
	}
	return false
}

// AssessDocumentQuality grades the document set for the risk scorer: every
// requirement verified is high, an unfilled requirement with a rejection on
// file is low, partial verification is medium, nothing verified is unspecified.
func AssessDocumentQuality(reqs []Requirement, docs []*Document) DocumentQuality {
	verified, rejected := 0, 0
	for _, d := range docs {
		switch d.Status {
		case DocumentRejected:
			rejected++
		case DocumentVerified:
			verified++
		}
	}
	switch {
	case verified > 0 && len(MissingRequirements(reqs, docs)) == 0:
		return QualityHigh
	case rejected > 0:
		return QualityLow
	case verified > 0:
		return QualityMedium
	default:
		return QualityUnspecified
	}
}
