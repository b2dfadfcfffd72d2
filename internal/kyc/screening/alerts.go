package screening

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/risk"
)

// alertFor returns the compliance alert for a result, or nil when the
// result is Low risk with no hard flag.
func alertFor(subj *models.Subject, r *models.ScreeningResult, at time.Time) *ports.Alert {
	hard := r.RequiresAutoReject()
	if !hard && !r.RiskLevel.AtLeast(models.RiskMedium) {
		return nil
	}

	a := &ports.Alert{
		SubjectID:  subj.ID,
		ExternalID: subj.ExternalID,
		Severity:   ports.AlertMedium,
		Title:      "Medium-Risk KYC Profile",
		RaisedAt:   at,
	}
	switch {
	case r.Sanctions:
		a.Title = "Sanctions Match Detected"
		a.Severity = ports.AlertHigh
	case r.Blacklist:
		a.Title = "Blacklisted Customer Detected"
		a.Severity = ports.AlertHigh
	case r.RiskLevel == models.RiskHigh:
		a.Title = "High-Risk KYC Profile"
		a.Severity = ports.AlertHigh
	}
	a.Reasons = flaggedReasons(r)
	a.Description = fmt.Sprintf("%s (%s) screened %s with risk score %.2f (%s); case is %s.",
		subj.DisplayName(), subj.ExternalID, r.KYCStatus, r.RiskScore, r.RiskLevel, r.CaseState)
	return a
}

func flaggedReasons(r *models.ScreeningResult) []string {
	var out []string
	add := func(hit bool, label string) {
		if hit {
			out = append(out, label)
		}
	}
	add(r.Sanctions, "sanctions")
	add(r.Blacklist, "blacklist")
	add(r.PEP, "politically exposed person")
	add(r.AdverseMedia, "adverse media")
	add(r.Watchlist, "watchlist")
	add(r.Fraud, "fraud")
	add(r.FinancialCrime, "financial crime")
	add(r.HighRiskCountry, "high-risk jurisdiction")
	return out
}

// notes renders the flagged reasons followed by per-factor scores.
func notes(reasons []string, a risk.Assessment) string {
	var sb strings.Builder
	if len(reasons) > 0 {
		sb.WriteString(strings.Join(reasons, "; "))
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Overall risk score: %.2f\n", a.OverallScore)
	fmt.Fprintf(&sb, "Risk level: %s\n", a.Level)
	sb.WriteString("Risk factor scores:")

	factors := make([]string, 0, len(a.Factors))
	for f := range a.Factors {
		factors = append(factors, string(f))
	}
	sort.Strings(factors)
	for _, f := range factors {
		fmt.Fprintf(&sb, "\n- %s: %.0f", f, a.Factors[models.Factor(f)])
	}
	return sb.String()
}
