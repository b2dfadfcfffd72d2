package models

import (
	"time"

	id "kyccase/pkg/domain"
)

// Report is the audit snapshot written when a case reaches a terminal state.
// At most one report per subject is current (Superseded false).
type Report struct {
	ID                   id.ReportID  `json:"id"`
	ReportNumber         string       `json:"report_id"`
	SubjectID            id.SubjectID `json:"subject_id"`
	Variant              Variant      `json:"report_type"`
	Decision             Decision     `json:"decision"`
	DecisionReason       string       `json:"decision_reason"`
	Summary              string       `json:"summary"`
	RiskAssessment       string       `json:"risk_assessment"`
	Sanctions            bool         `json:"sanctions_check"`
	PEP                  bool         `json:"pep_check"`
	AdverseMedia         bool         `json:"adverse_media_check"`
	EnhancedDueDiligence bool         `json:"edd_performed"`
	ResultID             *id.ResultID `json:"screening_result_id,omitempty"`
	Cycle                int          `json:"cycle"`
	GeneratedBy          string       `json:"generated_by"`
	GeneratedAt          time.Time    `json:"generated_at"`
	Superseded           bool         `json:"superseded"`
	SupersededAt         *time.Time   `json:"superseded_at,omitempty"`
}

// Supersede marks the report as no longer describing the current cycle.
func (r *Report) Supersede(now time.Time) {
	if r.Superseded {
		return
	}
	r.Superseded = true
	r.SupersededAt = &now
}
