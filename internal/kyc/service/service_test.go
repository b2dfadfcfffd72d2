package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kyccase/internal/kyc/lock"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/ports/mocks"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/risk"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/store"
	"kyccase/internal/kyc/vendor"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
	"kyccase/pkg/platform/audit/publishers/compliance"
	"kyccase/pkg/platform/audit/store/memory"
	"kyccase/pkg/requestcontext"
)

var now = time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	catalog *store.Memory
	vendor  *vendor.Fake
	audits  *memory.InMemoryStore
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithActor(requestcontext.WithTime(context.Background(), now), "officer-1")
	s.catalog = store.NewMemory()
	s.vendor = vendor.NewFake()
	s.audits = memory.NewInMemoryStore()
	s.svc = s.newService(s.vendor, compliance.New(s.audits))
}

func (s *ServiceSuite) newService(client ports.ScreeningClient, auditor ports.AuditEmitter) *Service {
	scorer, err := risk.New(risk.DefaultConfig())
	s.Require().NoError(err)
	locker := lock.NewMemory()
	reports := report.NewBuilder(report.WithAuditor(auditor))
	orch := screening.New(s.catalog, client, scorer, reports, locker,
		screening.WithAuditor(auditor),
		screening.WithClock(func() time.Time { return now }),
	)
	return New(s.catalog, orch, client, reports, locker, WithAuditor(auditor))
}

func (s *ServiceSuite) createIndividual(name, passport, country string) *models.Subject {
	subj, err := s.svc.CreateSubject(s.ctx, NewSubject{
		ExternalID: "EXT-" + passport,
		Email:      "Person." + passport + "@Example.test",
		Individual: &models.Individual{
			FullName:    name,
			Nationality: country,
			ID:          models.IDDescriptor{Kind: models.DocPassport, Number: passport},
		},
	})
	s.Require().NoError(err)
	return subj
}

func (s *ServiceSuite) submitted(name, passport, country string) id.SubjectID {
	subj := s.createIndividual(name, passport, country)
	_, err := s.svc.SubmitSubject(s.ctx, subj.ID)
	s.Require().NoError(err)
	return subj.ID
}

func (s *ServiceSuite) verifiedDocs(subjectID id.SubjectID, kinds ...models.DocumentKind) {
	for _, kind := range kinds {
		doc, err := s.svc.UploadDocument(s.ctx, subjectID, NewDocument{Kind: kind, FileRef: "s3://kyc/" + string(kind)})
		s.Require().NoError(err)
		_, err = s.svc.VerifyDocument(s.ctx, doc.ID, "matches selfie")
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) actions(subjectID id.SubjectID) []string {
	events, err := s.audits.ListBySubject(s.ctx, subjectID)
	s.Require().NoError(err)
	var out []string
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestOnboardingToApproval() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")
	s.verifiedDocs(subjectID, models.DocPassport, models.DocUtilityBill)

	out, err := s.svc.RunScreening(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, out.Case.State())

	view, err := s.svc.GetCase(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, view.Case.State())
	s.Empty(view.MissingDocuments)
	s.Require().NotNil(view.Result)
	s.Require().NotNil(view.Report)
	s.Equal("person.c01x00t47@example.test", view.Subject.Email)
	s.Equal(0, view.DaysInState)

	s.Equal([]string{
		string(audit.EventSubjectCreated),
		string(audit.EventSubjectSubmitted),
		string(audit.EventCaseTransitioned),
		string(audit.EventDocumentUploaded),
		string(audit.EventDocumentVerified),
		string(audit.EventDocumentUploaded),
		string(audit.EventDocumentVerified),
	}, s.actions(subjectID)[:7])
}

func (s *ServiceSuite) TestSubmitRequiresCompleteSubject() {
	subj, err := s.svc.CreateSubject(s.ctx, NewSubject{
		ExternalID: "EXT-1",
		Individual: &models.Individual{FullName: "No Email", Nationality: "DE", ID: models.IDDescriptor{Number: "X1"}},
	})
	s.Require().NoError(err)

	_, err = s.svc.SubmitSubject(s.ctx, subj.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	email := "late@example.test"
	_, err = s.svc.UpdateSubject(s.ctx, subj.ID, SubjectPatch{Email: &email})
	s.Require().NoError(err)
	c, err := s.svc.SubmitSubject(s.ctx, subj.ID)
	s.Require().NoError(err)
	s.Equal(models.StateSubmitted, c.State())

	_, err = s.svc.UpdateSubject(s.ctx, subj.ID, SubjectPatch{Email: &email})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	_, err = s.svc.SubmitSubject(s.ctx, subj.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestCreateRejectsAmbiguousVariant() {
	_, err := s.svc.CreateSubject(s.ctx, NewSubject{
		ExternalID: "EXT-2",
		Individual: &models.Individual{FullName: "A"},
		Business:   &models.Business{LegalName: "B"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestDuplicateExternalIDConflicts() {
	s.createIndividual("Anna Schmidt", "C01X00T47", "DE")
	_, err := s.svc.CreateSubject(s.ctx, NewSubject{
		ExternalID: "EXT-C01X00T47",
		Individual: &models.Individual{FullName: "Someone Else"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestApprovalFromScreeningNeedsDocuments() {
	subjectID := s.submitted("Reza Karimi", "IR778", "IR")
	out, err := s.svc.RunScreening(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.StateApprovalPending, out.Case.State())

	_, err = s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewApprove, Notes: "edd done"})
	s.True(workflow.IsKind(err, workflow.KindMissingRequiredDocuments))

	c, err := s.catalog.GetCase(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.StateApprovalPending, c.State())

	s.verifiedDocs(subjectID, models.DocPassport, models.DocBankStatement)
	dec, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewApprove, Notes: "edd done"})
	s.Require().NoError(err)
	s.Equal(models.StateApproved, dec.Case.State())
	s.Equal("edd done", dec.Report.DecisionReason)
	// High-risk cadence from the governing result
	s.Equal(now.Add(90*24*time.Hour), *dec.Case.NextReviewDate())
}

func (s *ServiceSuite) TestRejectRequiresReason() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")

	_, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewReject})
	s.True(workflow.IsKind(err, workflow.KindMissingReason))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Review(s.ctx, subjectID, ReviewInput{Action: "escalate"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestReopenAfterRejection() {
	subjectID := s.submitted("Ivan Petrov", "P55", "US")
	dec, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewReject, Reason: "Sanctions"})
	s.Require().NoError(err)
	s.Equal(models.StateRejected, dec.Case.State())
	s.Equal("Sanctions", dec.Report.DecisionReason)
	prior := dec.Report.ID

	c, err := s.svc.Reopen(s.ctx, subjectID, "new evidence")
	s.Require().NoError(err)
	s.Equal(models.StateScreening, c.State())
	last, ok := c.LastTransition()
	s.Require().True(ok)
	s.Equal(models.StateRejected, last.From)

	reports, err := s.catalog.ListReports(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(prior, reports[0].ID)
	s.True(reports[0].Superseded)

	_, _, err = s.svc.RenderReport(s.ctx, subjectID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(s.actions(subjectID), string(audit.EventCaseReopened))
}

func (s *ServiceSuite) TestApprovalNeedsScreeningResultAfterAbortedCycle() {
	subjectID := s.submitted("Ivan Petrov", "P55", "US")
	s.verifiedDocs(subjectID, models.DocPassport, models.DocUtilityBill)
	s.vendor.AddHit("Ivan Petrov", models.MatchedRecord{ID: "r1", Name: "Ivan Petrov", SourceType: models.SourceSanction})

	out, err := s.svc.RunScreening(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Require().Equal(models.StateRejected, out.Case.State())

	_, err = s.svc.Reopen(s.ctx, subjectID, "appeal")
	s.Require().NoError(err)
	s.vendor.FailNext(vendor.Unavailable(errors.New("connection reset")))
	_, err = s.svc.RunScreening(s.ctx, subjectID)
	s.Require().Error(err)

	_, err = s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewApprove, Notes: "looks fine"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	c, err := s.catalog.GetCase(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.StateScreening, c.State())

	// rejecting without a result stays possible
	dec, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewReject, Reason: "Sanctions"})
	s.Require().NoError(err)
	s.Equal(models.StateRejected, dec.Case.State())
}

func (s *ServiceSuite) TestReopenNonTerminalCase() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")
	_, err := s.svc.Reopen(s.ctx, subjectID, "")
	s.True(workflow.IsKind(err, workflow.KindIllegalTransition))
}

func (s *ServiceSuite) TestSanctionsResultBlocksManualApproval() {
	subjectID := s.submitted("Ivan Petrov", "P55", "US")
	for _, to := range []models.State{models.StateDocReview, models.StateInvestigation, models.StateApprovalPending} {
		_, err := s.svc.Transition(s.ctx, subjectID, TransitionInput{To: to})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.catalog.SaveResult(s.ctx, &models.ScreeningResult{
		ID: id.NewResultID(), SubjectID: subjectID,
		Flags: models.Flags{Sanctions: true}, RiskLevel: models.RiskHigh, ScreenedAt: now,
	}))

	_, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewApprove})
	s.True(workflow.IsKind(err, workflow.KindAutoRejectRequired))
}

func (s *ServiceSuite) TestManualTransitionTargets() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")

	_, err := s.svc.Transition(s.ctx, subjectID, TransitionInput{To: models.StateApproved})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Transition(s.ctx, subjectID, TransitionInput{To: models.StateInvestigation})
	s.True(workflow.IsKind(err, workflow.KindIllegalTransition))

	c, err := s.svc.Transition(s.ctx, subjectID, TransitionInput{To: models.StateDocReview, Notes: "awaiting utility bill"})
	s.Require().NoError(err)
	s.Equal(models.StateDocReview, c.State())
}

func (s *ServiceSuite) TestAssignAndListCases() {
	first := s.submitted("Anna Schmidt", "C01X00T47", "DE")
	s.submitted("Ivan Petrov", "P55", "US")
	s.createIndividual("Dora Draft", "D1", "DE")

	c, err := s.svc.Assign(s.ctx, first, "reviewer-7")
	s.Require().NoError(err)
	s.Equal("reviewer-7", c.Assignee())

	_, err = s.svc.Assign(s.ctx, first, "  ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	cases, err := s.svc.ListCases(s.ctx, CaseQuery{State: "submitted"})
	s.Require().NoError(err)
	s.Len(cases, 2)

	cases, err = s.svc.ListCases(s.ctx, CaseQuery{Limit: 1})
	s.Require().NoError(err)
	s.Len(cases, 1)

	_, err = s.svc.ListCases(s.ctx, CaseQuery{State: "limbo"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestGenerateReportRequiresTerminalCase() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")
	_, err := s.svc.GenerateReport(s.ctx, subjectID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	dec, err := s.svc.Review(s.ctx, subjectID, ReviewInput{Action: ReviewReject, Reason: "fraudulent documents"})
	s.Require().NoError(err)
	rep, err := s.svc.GenerateReport(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal(models.DecisionRejected, rep.Decision)
	s.Equal(dec.Report.ReportNumber, rep.ReportNumber)
	reports, err := s.catalog.ListReports(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Len(reports, 1)

	body, contentType, err := s.svc.RenderReport(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Equal("application/json", contentType)
	s.Contains(string(body), rep.ReportNumber)
}

func (s *ServiceSuite) TestDocumentReviewRules() {
	subjectID := s.submitted("Anna Schmidt", "C01X00T47", "DE")
	doc, err := s.svc.UploadDocument(s.ctx, subjectID, NewDocument{Kind: models.DocPassport, FileRef: "s3://kyc/p"})
	s.Require().NoError(err)

	_, err = s.svc.RejectDocument(s.ctx, doc.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	rejected, err := s.svc.RejectDocument(s.ctx, doc.ID, "blurry scan")
	s.Require().NoError(err)
	s.Equal(models.DocumentRejected, rejected.Status)

	_, err = s.svc.VerifyDocument(s.ctx, doc.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.svc.VerifyDocument(s.ctx, id.NewDocumentID(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.UploadDocument(s.ctx, id.NewSubjectID(), NewDocument{Kind: models.DocPassport, FileRef: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAuditFailureRollsBackSubmission() {
	subj := s.createIndividual("Anna Schmidt", "C01X00T47", "DE")

	ctrl := gomock.NewController(s.T())
	auditor := mocks.NewMockAuditEmitter(ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))
	svc := s.newService(s.vendor, auditor)

	_, err := svc.SubmitSubject(s.ctx, subj.ID)
	s.Require().Error(err)

	stored, err := s.catalog.GetSubject(s.ctx, subj.ID)
	s.Require().NoError(err)
	s.True(stored.IsDraft)
	_, err = s.catalog.GetCase(s.ctx, subj.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestVendorReportAndSources() {
	subj := s.createIndividual("Anna Schmidt", "C01X00T47", "DE")

	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockScreeningClient(ctrl)
	client.EXPECT().
		GenerateIndividualReport(gomock.Any(), gomock.Cond(func(x any) bool {
			q, ok := x.(ports.IndividualQuery)
			return ok && len(q.Names) == 1 && q.Names[0] == "Anna Schmidt"
		})).
		Return(&ports.VendorReport{PDFBase64: "JVBERi0="}, nil)
	client.EXPECT().ListSources(gomock.Any()).
		Return(nil, vendor.Unavailable(errors.New("503")))
	svc := s.newService(client, compliance.New(s.audits))

	rep, err := svc.VendorReport(s.ctx, subj.ID)
	s.Require().NoError(err)
	s.Equal("JVBERi0=", rep.PDFBase64)

	_, err = svc.ListSources(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
