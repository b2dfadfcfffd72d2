package store

import "kyccase/internal/kyc/models"

// Stored values are cloned on the way in and out so callers never share
// memory with the catalog.

func cloneSubject(s *models.Subject) *models.Subject {
	out := *s
	if s.Individual != nil {
		ind := *s.Individual
		out.Individual = &ind
	}
	if s.Business != nil {
		biz := *s.Business
		biz.BeneficialOwners = append([]models.BeneficialOwner(nil), s.Business.BeneficialOwners...)
		out.Business = &biz
	}
	return &out
}

func cloneDocument(d *models.Document) *models.Document {
	out := *d
	return &out
}

func cloneResult(r *models.ScreeningResult) *models.ScreeningResult {
	out := *r
	out.Factors = cloneFactors(r.Factors)
	out.Weights = cloneFactors(r.Weights)
	out.MatchedRecords = make([]models.MatchedRecord, len(r.MatchedRecords))
	for i, rec := range r.MatchedRecords {
		rec.Categories = append([]string(nil), rec.Categories...)
		out.MatchedRecords[i] = rec
	}
	if len(out.MatchedRecords) == 0 {
		out.MatchedRecords = nil
	}
	return &out
}

func cloneReport(r *models.Report) *models.Report {
	out := *r
	return &out
}

func cloneFactors(in map[models.Factor]float64) map[models.Factor]float64 {
	if in == nil {
		return nil
	}
	out := make(map[models.Factor]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
