package risk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyccase/internal/kyc/models"
	id "kyccase/pkg/domain"
)

var asOf = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func person(country string, created time.Time) *models.Subject {
	return &models.Subject{
		ID:         id.NewSubjectID(),
		ExternalID: "IND-1",
		Individual: &models.Individual{FullName: "Jane Doe", Nationality: country, ResidenceCountry: country},
		CreatedAt:  created,
	}
}

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func sumWeights(w map[models.Factor]float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range w {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

func TestScoreCleanIndividual(t *testing.T) {
	s := newScorer(t)

	a := s.Score(Input{Subject: person("DE", asOf), DocumentQuality: models.QualityHigh, AsOf: asOf})

	// country 10*15 + volume 30*8 + docs 10*7 + relationship 80*5, all /100
	assert.Equal(t, 8.6, a.OverallScore)
	assert.Equal(t, models.RiskLow, a.Level)
	assert.Equal(t, 10.0, a.Factors[models.FactorCountryRisk])
	assert.False(t, a.HighRiskCountry)
}

func TestScoreHighRiskJurisdictionFloor(t *testing.T) {
	s := newScorer(t)

	a := s.Score(Input{Subject: person("IR", asOf), AsOf: asOf})

	assert.Equal(t, 100.0, a.Factors[models.FactorCountryRisk])
	assert.True(t, a.HighRiskCountry)
	assert.GreaterOrEqual(t, a.OverallScore, 75.0)
	assert.Equal(t, models.RiskHigh, a.Level)
}

func TestScoreSanctionsAndPEP(t *testing.T) {
	s := newScorer(t)
	subj := person("US", asOf.AddDate(-5, 0, 0))
	hit := &models.ScreeningResult{
		Flags:                models.Flags{Sanctions: true, PEP: true, AdverseMedia: true},
		PEPCategory:          models.PEPPrimary,
		AdverseMediaSeverity: models.SeverityHigh,
	}

	a := s.Score(Input{Subject: subj, Screening: hit, DocumentQuality: models.QualityLow, AsOf: asOf})

	assert.Equal(t, 100.0, a.Factors[models.FactorSanctions])
	assert.Equal(t, 100.0, a.Factors[models.FactorPEPStatus])
	assert.Equal(t, 100.0, a.Factors[models.FactorAdverseMedia])
	assert.Equal(t, 10.0, a.Factors[models.FactorRelationshipDuration])
	// 25+30+1.5+10+2.4+5.6+0.5
	assert.Equal(t, 75.0, a.OverallScore)
	assert.Equal(t, models.RiskHigh, a.Level)
}

func TestFactorRules(t *testing.T) {
	t.Run("pep categories", func(t *testing.T) {
		subj := person("DE", asOf)
		cases := map[models.PEPCategory]float64{
			models.PEPPrimary: 100, models.PEPFamily: 75, models.PEPAssociate: 50, models.PEPUnspecified: 80, models.PEPNone: 80,
		}
		for cat, want := range cases {
			r := &models.ScreeningResult{Flags: models.Flags{PEP: true}, PEPCategory: cat}
			assert.Equal(t, want, pepScore(subj, r), "category %q", cat)
		}
		assert.Equal(t, 0.0, pepScore(subj, nil))
	})

	t.Run("business pep owner counts as unspecified", func(t *testing.T) {
		biz := &models.Subject{Business: &models.Business{
			LegalName:        "Acme",
			BeneficialOwners: []models.BeneficialOwner{{Name: "Owner", PEP: true}},
		}}
		assert.Equal(t, 80.0, pepScore(biz, &models.ScreeningResult{}))
	})

	t.Run("adverse media severity", func(t *testing.T) {
		cases := map[models.Severity]float64{
			models.SeverityHigh: 100, models.SeverityMedium: 60, models.SeverityLow: 30, models.SeverityUnspecified: 50,
		}
		for sev, want := range cases {
			r := &models.ScreeningResult{Flags: models.Flags{AdverseMedia: true}, AdverseMediaSeverity: sev}
			assert.Equal(t, want, adverseMediaScore(r), "severity %q", sev)
		}
		assert.Equal(t, 0.0, adverseMediaScore(&models.ScreeningResult{AdverseMediaSeverity: models.SeverityHigh}))
	})

	t.Run("transaction volume", func(t *testing.T) {
		d := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
		tests := []struct {
			name     string
			activity models.TransactionActivity
			want     float64
		}{
			{"unknown observed", models.TransactionActivity{}, 30},
			{"absolute above 1M", models.TransactionActivity{Observed: d("1000001")}, 80},
			{"absolute exactly 1M", models.TransactionActivity{Observed: d("1000000")}, 60},
			{"absolute above 10k", models.TransactionActivity{Observed: d("20000")}, 40},
			{"absolute small", models.TransactionActivity{Observed: d("500")}, 20},
			{"zero expected falls back to absolute", models.TransactionActivity{Observed: d("500"), Expected: d("0")}, 20},
			{"ratio above 3", models.TransactionActivity{Observed: d("400"), Expected: d("100")}, 100},
			{"ratio exactly 3", models.TransactionActivity{Observed: d("300"), Expected: d("100")}, 75},
			{"ratio 1.6", models.TransactionActivity{Observed: d("160"), Expected: d("100")}, 50},
			{"ratio 1.3", models.TransactionActivity{Observed: d("130"), Expected: d("100")}, 25},
			{"ratio within plan", models.TransactionActivity{Observed: d("100"), Expected: d("100")}, 10},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, transactionScore(tt.activity), tt.name)
		}
	})

	t.Run("relationship duration", func(t *testing.T) {
		assert.Equal(t, 80.0, relationshipScore(person("DE", asOf.AddDate(0, 0, -89)), asOf))
		assert.Equal(t, 50.0, relationshipScore(person("DE", asOf.AddDate(0, 0, -90)), asOf))
		assert.Equal(t, 30.0, relationshipScore(person("DE", asOf.AddDate(0, 0, -365)), asOf))
		assert.Equal(t, 10.0, relationshipScore(person("DE", asOf.AddDate(0, 0, -1095)), asOf))
	})

	t.Run("medium country uses riskier of residence and nationality", func(t *testing.T) {
		s := newScorer(t)
		subj := person("DE", asOf)
		subj.Individual.Nationality = "NG"
		assert.Equal(t, 50.0, s.countryScore(subj))
	})
}

func TestLevelThresholds(t *testing.T) {
	assert.Equal(t, models.RiskHigh, LevelFor(75))
	assert.Equal(t, models.RiskMedium, LevelFor(74.99))
	assert.Equal(t, models.RiskMedium, LevelFor(40))
	assert.Equal(t, models.RiskLow, LevelFor(39.99))
}

func TestNormalizeWeights(t *testing.T) {
	t.Run("defaults unchanged", func(t *testing.T) {
		w, err := NormalizeWeights(DefaultWeights)
		require.NoError(t, err)
		assert.Equal(t, DefaultWeights, w)
	})

	t.Run("thirds absorb remainder into largest", func(t *testing.T) {
		w, err := NormalizeWeights(map[models.Factor]float64{
			models.FactorSanctions: 1, models.FactorPEPStatus: 1, models.FactorCountryRisk: 1,
		})
		require.NoError(t, err)
		assert.True(t, sumWeights(w).Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 0.0, w[models.FactorAdverseMedia])
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := NormalizeWeights(map[models.Factor]float64{})
		require.Error(t, err)
		_, err = NormalizeWeights(map[models.Factor]float64{models.FactorSanctions: -1, models.FactorPEPStatus: 5})
		require.Error(t, err)
		_, err = NormalizeWeights(map[models.Factor]float64{"credit_score": 5})
		require.Error(t, err)
	})
}

func TestWeightNormalizationProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("normalized weights sum to exactly 100", prop.ForAll(
		func(raw []float64) bool {
			in := map[models.Factor]float64{}
			for i, f := range models.Factors {
				if i < len(raw) {
					in[f] = raw[i]
				}
			}
			if sumWeights(in).IsZero() {
				return true
			}
			w, err := NormalizeWeights(in)
			return err == nil && sumWeights(w).Equal(decimal.NewFromInt(100))
		},
		gen.SliceOfN(len(models.Factors), gen.Float64Range(0, 1000)),
	))

	properties.TestingRun(t)
}

func TestScoreIsIdempotent(t *testing.T) {
	s := newScorer(t)
	in := Input{
		Subject:         person("RU", asOf.AddDate(-1, 0, 0)),
		Screening:       &models.ScreeningResult{Flags: models.Flags{PEP: true}, PEPCategory: models.PEPFamily},
		DocumentQuality: models.QualityMedium,
		AsOf:            asOf,
	}

	first, err := json.Marshal(s.Score(in))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(s.Score(in))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	a := s.Score(in)
	a.Weights[models.FactorSanctions] = 0
	assert.Equal(t, 30.0, s.Weights()[models.FactorSanctions])
}
