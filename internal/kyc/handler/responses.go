package handler

import (
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/service"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
)

// CaseResponse is the wire form of a case, including its full history.
type CaseResponse struct {
	workflow.Snapshot
	AllowedTransitions []models.State `json:"allowed_transitions"`
}

func FromCase(c *workflow.Case) *CaseResponse {
	if c == nil {
		return nil
	}
	return &CaseResponse{
		Snapshot:           c.Snapshot(),
		AllowedTransitions: workflow.Targets(c.State()),
	}
}

type CaseListResponse struct {
	Cases []*CaseResponse `json:"cases"`
	Count int             `json:"count"`
}

// CaseViewResponse is the body of GET /subjects/{id}.
type CaseViewResponse struct {
	Subject          *models.Subject         `json:"subject"`
	Case             *CaseResponse           `json:"case,omitempty"`
	Documents        []*models.Document      `json:"documents"`
	ScreeningResult  *models.ScreeningResult `json:"screening_result,omitempty"`
	Report           *models.Report          `json:"report,omitempty"`
	MissingDocuments []string                `json:"missing_documents"`
	DaysInState      int                     `json:"days_in_state"`
}

func FromView(v *service.CaseView) *CaseViewResponse {
	docs := v.Documents
	if docs == nil {
		docs = []*models.Document{}
	}
	missing := v.MissingDocuments
	if missing == nil {
		missing = []string{}
	}
	return &CaseViewResponse{
		Subject:          v.Subject,
		Case:             FromCase(v.Case),
		Documents:        docs,
		ScreeningResult:  v.Result,
		Report:           v.Report,
		MissingDocuments: missing,
		DaysInState:      v.DaysInState,
	}
}

// ScreeningResponse is the body of POST /subjects/{id}/screenings.
type ScreeningResponse struct {
	Case            *CaseResponse           `json:"case"`
	ScreeningResult *models.ScreeningResult `json:"screening_result"`
	Report          *models.Report          `json:"report,omitempty"`
	Alert           *ports.Alert            `json:"alert,omitempty"`
}

func FromOutcome(out *screening.Outcome) *ScreeningResponse {
	return &ScreeningResponse{
		Case:            FromCase(out.Case),
		ScreeningResult: out.Result,
		Report:          out.Report,
		Alert:           out.Alert,
	}
}

type DecisionResponse struct {
	Case   *CaseResponse  `json:"case"`
	Report *models.Report `json:"report"`
}

type SourcesResponse struct {
	Sources []ports.Source `json:"sources"`
}

type VendorReportResponse struct {
	SubjectID id.SubjectID `json:"subject_id"`
	PDFBase64 string       `json:"pdf_base64"`
}
