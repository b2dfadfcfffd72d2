package risk

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"kyccase/internal/kyc/models"
	dErrors "kyccase/pkg/domain-errors"
	kstrings "kyccase/pkg/platform/strings"
)

// DefaultWeights sum to 100.
var DefaultWeights = map[models.Factor]float64{
	models.FactorPEPStatus:            25,
	models.FactorSanctions:            30,
	models.FactorCountryRisk:          15,
	models.FactorAdverseMedia:         10,
	models.FactorTransactionVolume:    8,
	models.FactorDocumentQuality:      7,
	models.FactorRelationshipDuration: 5,
}

var (
	DefaultHighRiskCountries = []string{
		"AF", "KP", "IR", "SY", "VE", "IQ", "YE", "LY", "SO", "MM", "SS", "CD", "ER", "ZW", "HT",
	}
	DefaultMediumRiskCountries = []string{
		"NG", "PK", "LB", "BY", "RU", "TD", "SD", "UZ", "TM", "CF", "CM", "NE", "ML", "MZ",
	}
)

const DefaultHighRiskCountryFloor = 75.0

// Config is the deployment-level scoring configuration.
type Config struct {
	Weights              map[models.Factor]float64
	HighRiskCountries    []string
	MediumRiskCountries  []string
	HighRiskCountryFloor float64
}

// DefaultConfig returns the stock weights and country lists.
func DefaultConfig() Config {
	w := make(map[models.Factor]float64, len(DefaultWeights))
	for k, v := range DefaultWeights {
		w[k] = v
	}
	return Config{
		Weights:              w,
		HighRiskCountries:    append([]string(nil), DefaultHighRiskCountries...),
		MediumRiskCountries:  append([]string(nil), DefaultMediumRiskCountries...),
		HighRiskCountryFloor: DefaultHighRiskCountryFloor,
	}
}

// NormalizeWeights scales weights to two decimals summing to exactly 100.
// The largest weight absorbs the rounding remainder. Factors missing from
// the input get weight 0.
func NormalizeWeights(in map[models.Factor]float64) (map[models.Factor]float64, error) {
	known := make(map[models.Factor]bool, len(models.Factors))
	for _, f := range models.Factors {
		known[f] = true
	}

	total := decimal.Zero
	for f, w := range in {
		if !known[f] {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown risk factor %q", f))
		}
		if w < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("risk weight for %s is negative", f))
		}
		total = total.Add(decimal.NewFromFloat(w))
	}
	if !total.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "risk weights must sum to a positive value")
	}

	hundred := decimal.NewFromInt(100)
	scaled := make(map[models.Factor]decimal.Decimal, len(models.Factors))
	sum := decimal.Zero
	var largest models.Factor
	for _, f := range models.Factors {
		v := decimal.NewFromFloat(in[f]).Mul(hundred).Div(total).Round(2)
		scaled[f] = v
		sum = sum.Add(v)
		if largest == "" || v.GreaterThan(scaled[largest]) {
			largest = f
		}
	}
	scaled[largest] = scaled[largest].Add(hundred.Sub(sum))

	out := make(map[models.Factor]float64, len(scaled))
	for f, v := range scaled {
		out[f] = v.InexactFloat64()
	}
	return out, nil
}

func countrySet(codes []string) map[string]struct{} {
	codes = kstrings.DedupeUpper(codes)
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
