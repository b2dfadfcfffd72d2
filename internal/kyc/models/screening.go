package models

import (
	"time"

	id "kyccase/pkg/domain"
)

// MatchedRecord is a normalized watchlist hit returned by the screening vendor.
type MatchedRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	SourceType  SourceType `json:"source_type"`
	SourceID    string     `json:"source_id,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	PEPType     string     `json:"pep_type,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	ScreenedFor string     `json:"screened_for,omitempty"`
}

// Flags are the boolean outcomes of one screening cycle.
type Flags struct {
	Sanctions       bool `json:"sanctions_list_check"`
	PEP             bool `json:"politically_exposed_person"`
	Watchlist       bool `json:"watchlist_check"`
	AdverseMedia    bool `json:"adverse_media_check"`
	Blacklist       bool `json:"blacklist"`
	Fraud           bool `json:"fraud_check"`
	FinancialCrime  bool `json:"financial_crime_check"`
	HighRiskCountry bool `json:"high_risk_country"`
}

// RequiresAutoReject reports a hard flag that forces rejection.
func (f Flags) RequiresAutoReject() bool {
	return f.Sanctions || f.Blacklist
}

// ScreeningResult is the governing outcome of the latest screening cycle.
type ScreeningResult struct {
	ID                    id.ResultID        `json:"id"`
	SubjectID             id.SubjectID       `json:"subject_id"`
	CaseState             State              `json:"case_state"`
	Flags                                    // flattened into the JSON object
	PEPCategory           PEPCategory        `json:"pep_category,omitempty"`
	AdverseMediaSeverity  Severity           `json:"adverse_media_severity,omitempty"`
	RiskLevel             RiskLevel          `json:"risk_level"`
	RiskScore             float64            `json:"risk_score"`
	Factors               map[Factor]float64 `json:"factors"`
	Weights               map[Factor]float64 `json:"weights"`
	KYCStatus             KYCStatus          `json:"kyc_status"`
	EnhancedDueDiligence  bool               `json:"enhanced_due_diligence_required"`
	TransactionMonitoring bool               `json:"transaction_monitoring_required"`
	Notes                 string             `json:"notes"`
	MatchedRecords        []MatchedRecord    `json:"matched_records,omitempty"`
	Reviewer              string             `json:"reviewer"`
	ScreenedAt            time.Time          `json:"screened_at"`
}

// DeriveKYCStatus applies the decision ladder: a hard flag rejects, PEP or
// High risk pends with enhanced due diligence, Medium pends, anything else
// verifies.
func (r *ScreeningResult) DeriveKYCStatus() {
	r.EnhancedDueDiligence = false
	switch {
	case r.RequiresAutoReject():
		r.KYCStatus = KYCRejected
	case r.PEP || r.RiskLevel == RiskHigh:
		r.KYCStatus = KYCPending
		r.EnhancedDueDiligence = true
	case r.RiskLevel == RiskMedium:
		r.KYCStatus = KYCPending
	default:
		r.KYCStatus = KYCVerified
	}
	r.TransactionMonitoring = r.PEP || r.AdverseMedia || r.HighRiskCountry || r.RiskScore > 50
}

// Cadence is the rescreening interval for a risk level.
func Cadence(level RiskLevel) time.Duration {
	const day = 24 * time.Hour
	switch level {
	case RiskHigh:
		return 90 * day
	case RiskMedium:
		return 180 * day
	default:
		return 365 * day
	}
}
