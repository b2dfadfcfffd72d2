// Package risk computes the weighted KYC risk score. The scorer is pure: it
// never reads storage or the clock.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"kyccase/internal/kyc/models"
	dErrors "kyccase/pkg/domain-errors"
)

const (
	highThreshold   = 75.0
	mediumThreshold = 40.0
)

// Input is everything a score depends on.
type Input struct {
	Subject *models.Subject
	// Screening carries vendor flags, PEP category, and adverse media
	// severity. Nil scores as a clean screening.
	Screening       *models.ScreeningResult
	DocumentQuality models.DocumentQuality
	AsOf            time.Time
}

// Assessment is the scorer output. Maps are fresh per call.
type Assessment struct {
	OverallScore    float64                   `json:"overall_score"`
	Level           models.RiskLevel          `json:"risk_level"`
	Factors         map[models.Factor]float64 `json:"factors"`
	Weights         map[models.Factor]float64 `json:"weights"`
	HighRiskCountry bool                      `json:"high_risk_country"`
}

// Scorer holds normalized weights and country classifications.
type Scorer struct {
	weights map[models.Factor]float64
	high    map[string]struct{}
	medium  map[string]struct{}
	floor   float64
}

// New validates cfg and renormalizes its weights.
func New(cfg Config) (*Scorer, error) {
	weights, err := NormalizeWeights(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.HighRiskCountryFloor < 0 || cfg.HighRiskCountryFloor > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "high risk country floor must be within 0..100")
	}
	return &Scorer{
		weights: weights,
		high:    countrySet(cfg.HighRiskCountries),
		medium:  countrySet(cfg.MediumRiskCountries),
		floor:   cfg.HighRiskCountryFloor,
	}, nil
}

// Weights returns a copy of the normalized weights.
func (s *Scorer) Weights() map[models.Factor]float64 {
	return copyFactors(s.weights)
}

// HighRiskCountries lists the configured high-risk jurisdictions, sorted.
func (s *Scorer) HighRiskCountries() []string { return sortedKeys(s.high) }

// Score rates in. It panics on a nil subject.
func (s *Scorer) Score(in Input) Assessment {
	country := s.countryScore(in.Subject)
	factors := map[models.Factor]float64{
		models.FactorPEPStatus:            pepScore(in.Subject, in.Screening),
		models.FactorSanctions:            sanctionsScore(in.Screening),
		models.FactorCountryRisk:          country,
		models.FactorAdverseMedia:         adverseMediaScore(in.Screening),
		models.FactorTransactionVolume:    transactionScore(in.Subject.Activity),
		models.FactorDocumentQuality:      documentScore(in.DocumentQuality),
		models.FactorRelationshipDuration: relationshipScore(in.Subject, in.AsOf),
	}

	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	for _, f := range models.Factors {
		contribution := decimal.NewFromFloat(factors[f]).Mul(decimal.NewFromFloat(s.weights[f])).Div(hundred)
		total = total.Add(contribution)
	}
	overall := total.Round(2).InexactFloat64()
	if country == 100 && overall < s.floor {
		overall = s.floor
	}

	return Assessment{
		OverallScore:    overall,
		Level:           LevelFor(overall),
		Factors:         factors,
		Weights:         copyFactors(s.weights),
		HighRiskCountry: country == 100,
	}
}

// LevelFor maps a score to a level; exact thresholds take the higher level.
func LevelFor(score float64) models.RiskLevel {
	switch {
	case score >= highThreshold:
		return models.RiskHigh
	case score >= mediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func copyFactors(in map[models.Factor]float64) map[models.Factor]float64 {
	out := make(map[models.Factor]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
