package service

import (
	"context"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/screening"
	id "kyccase/pkg/domain"
	"kyccase/pkg/requestcontext"
)

// RunScreening runs a full screening cycle for the subject. The cycle takes
// the subject lock itself.
func (s *Service) RunScreening(ctx context.Context, subjectID id.SubjectID) (*screening.Outcome, error) {
	out, err := s.screener.RunForSubject(ctx, subjectID, requestcontext.Actor(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Service) ListSources(ctx context.Context) ([]ports.Source, error) {
	sources, err := s.client.ListSources(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return sources, nil
}

// VendorReport fetches the vendor's due diligence PDF for the subject.
func (s *Service) VendorReport(ctx context.Context, subjectID id.SubjectID) (*ports.VendorReport, error) {
	subj, err := s.catalog.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, translate(notFound("subject", err))
	}

	all := []models.SourceType{models.SourceAll}
	var rep *ports.VendorReport
	if subj.Variant() == models.VariantBusiness {
		rep, err = s.client.GenerateEntityReport(ctx, ports.EntityQuery{
			Names: []string{subj.Business.LegalName}, Includes: all,
		})
	} else {
		ind := subj.Individual
		rep, err = s.client.GenerateIndividualReport(ctx, ports.IndividualQuery{
			Names: []string{ind.FullName}, DOB: ind.DateOfBirth, Gender: ind.Gender, Includes: all,
		})
	}
	if err != nil {
		return nil, translate(err)
	}
	return rep, nil
}
