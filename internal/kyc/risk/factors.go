package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"kyccase/internal/kyc/models"
)

var (
	oneMillion     = decimal.NewFromInt(1_000_000)
	hundredK       = decimal.NewFromInt(100_000)
	tenK           = decimal.NewFromInt(10_000)
	ratioSteps     = []decimal.Decimal{decimal.NewFromInt(3), decimal.NewFromInt(2), decimal.RequireFromString("1.5"), decimal.RequireFromString("1.2")}
	ratioStepScore = []float64{100, 75, 50, 25}
)

// countryScore rates the riskiest jurisdiction the subject is tied to.
func (s *Scorer) countryScore(subj *models.Subject) float64 {
	best := 10.0
	for _, c := range subj.RiskCountries() {
		if _, ok := s.high[c]; ok {
			return 100
		}
		if _, ok := s.medium[c]; ok {
			best = 50
		}
	}
	return best
}

func pepScore(subj *models.Subject, r *models.ScreeningResult) float64 {
	if r == nil || !r.PEP {
		if subj.HasPEPOwner() {
			return 80
		}
		return 0
	}
	switch r.PEPCategory {
	case models.PEPPrimary:
		return 100
	case models.PEPFamily:
		return 75
	case models.PEPAssociate:
		return 50
	default:
		return 80
	}
}

func sanctionsScore(r *models.ScreeningResult) float64 {
	if r != nil && r.Sanctions {
		return 100
	}
	return 0
}

func adverseMediaScore(r *models.ScreeningResult) float64 {
	if r == nil || !r.AdverseMedia {
		return 0
	}
	switch r.AdverseMediaSeverity {
	case models.SeverityHigh:
		return 100
	case models.SeverityMedium:
		return 60
	case models.SeverityLow:
		return 30
	default:
		return 50
	}
}

func transactionScore(a models.TransactionActivity) float64 {
	if !a.Observed.Valid {
		return 30
	}
	observed := a.Observed.Decimal
	if !a.Expected.Valid || !a.Expected.Decimal.IsPositive() {
		switch {
		case observed.GreaterThan(oneMillion):
			return 80
		case observed.GreaterThan(hundredK):
			return 60
		case observed.GreaterThan(tenK):
			return 40
		default:
			return 20
		}
	}
	ratio := observed.Div(a.Expected.Decimal)
	for i, step := range ratioSteps {
		if ratio.GreaterThan(step) {
			return ratioStepScore[i]
		}
	}
	return 10
}

func documentScore(q models.DocumentQuality) float64 {
	switch q {
	case models.QualityHigh:
		return 10
	case models.QualityMedium:
		return 40
	case models.QualityLow:
		return 80
	default:
		return 50
	}
}

func relationshipScore(subj *models.Subject, asOf time.Time) float64 {
	days := 0
	if asOf.After(subj.CreatedAt) {
		days = int(asOf.Sub(subj.CreatedAt).Hours() / 24)
	}
	switch {
	case days < 90:
		return 80
	case days < 365:
		return 50
	case days < 1095:
		return 30
	default:
		return 10
	}
}
