package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kyccase/internal/kyc/lock"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/risk"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/service"
	"kyccase/internal/kyc/store"
	"kyccase/internal/kyc/vendor"
	"kyccase/pkg/platform/audit/publishers/compliance"
	"kyccase/pkg/platform/audit/store/memory"
	"kyccase/pkg/platform/httputil"
	"kyccase/pkg/platform/middleware/metadata"
	"kyccase/pkg/platform/middleware/requesttime"
	"kyccase/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	vendor  *vendor.Fake
	handler *Handler
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	catalog := store.NewMemory()
	s.vendor = vendor.NewFake()
	scorer, err := risk.New(risk.DefaultConfig())
	s.Require().NoError(err)
	auditor := compliance.New(memory.NewInMemoryStore())
	locker := lock.NewMemory()
	reports := report.NewBuilder(report.WithAuditor(auditor))
	orch := screening.New(catalog, s.vendor, scorer, reports, locker, screening.WithAuditor(auditor))
	svc := service.New(catalog, orch, s.vendor, reports, locker, service.WithAuditor(auditor))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(chimw.RequestID, metadata.CaseMetadata, requesttime.Middleware)
	s.handler = New(svc, logger)
	s.handler.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set(metadata.HeaderActor, "analyst.kim")
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var resp httputil.ErrorResponse
	s.decode(rec, &resp)
	return resp.Error
}

func (s *HandlerSuite) createIndividual(country string) string {
	rec := s.do(http.MethodPost, "/subjects", map[string]any{
		"external_id": "cust-" + uuid.NewString()[:8],
		"email":       "anna@example.test",
		"individual": map[string]any{
			"full_name":     "Anna Schmidt",
			"date_of_birth": "1988-03-14",
			"nationality":   country,
			"id_document":   map[string]any{"kind": "passport", "number": "C01X00T47", "expiry_date": "2031-01-01"},
			"annual_income": "52000.00",
		},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var subj models.Subject
	s.decode(rec, &subj)
	s.True(subj.IsDraft)
	return subj.ID.String()
}

func (s *HandlerSuite) uploadVerified(subjectID, kind string) {
	rec := s.do(http.MethodPost, "/subjects/"+subjectID+"/documents", map[string]any{
		"kind": kind, "file_ref": "s3://kyc/" + kind, "issue_date": "2024-01-01",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var doc models.Document
	s.decode(rec, &doc)

	rec = s.do(http.MethodPost, "/documents/"+doc.ID.String()+"/verify", map[string]any{"notes": "ok"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestOnboardingFlow() {
	subjectID := s.createIndividual("DE")

	rec := s.do(http.MethodPost, "/subjects/"+subjectID+"/submit", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var submitted CaseResponse
	s.decode(rec, &submitted)
	s.Equal(models.StateSubmitted, submitted.CurrentState)
	s.Contains(submitted.AllowedTransitions, models.StateScreening)

	s.uploadVerified(subjectID, "passport")
	s.uploadVerified(subjectID, "utility_bill")

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/screenings", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var screened ScreeningResponse
	s.decode(rec, &screened)
	s.Equal(models.StateApproved, screened.Case.CurrentState)
	s.Equal(models.RiskLow, screened.ScreeningResult.RiskLevel)
	s.Require().NotNil(screened.Report)
	s.Equal("analyst.kim", screened.Case.History[len(screened.Case.History)-1].Actor)

	rec = s.do(http.MethodGet, "/subjects/"+subjectID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var view CaseViewResponse
	s.decode(rec, &view)
	s.Len(view.Documents, 2)
	s.Empty(view.MissingDocuments)
	s.Require().NotNil(view.Report)

	rec = s.do(http.MethodGet, "/subjects/"+subjectID+"/report", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), view.Report.ReportNumber)

	rec = s.do(http.MethodGet, "/cases?state=approved&limit=10", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list CaseListResponse
	s.decode(rec, &list)
	s.Equal(1, list.Count)
}

func (s *HandlerSuite) TestCreateSubjectValidation() {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"both variants", map[string]any{
			"external_id": "x1",
			"individual":  map[string]any{"full_name": "A"},
			"business":    map[string]any{"legal_name": "B"},
		}},
		{"no variant", map[string]any{"external_id": "x2"}},
		{"missing external id", map[string]any{"individual": map[string]any{"full_name": "A"}}},
		{"bad email", map[string]any{"external_id": "x3", "email": "nope", "individual": map[string]any{"full_name": "A"}}},
		{"bad date", map[string]any{"external_id": "x4", "individual": map[string]any{"full_name": "A", "date_of_birth": "14/03/1988"}}},
		{"owner over 100 percent", map[string]any{"external_id": "x5", "business": map[string]any{
			"legal_name":        "Acme GmbH",
			"beneficial_owners": []map[string]any{{"name": "O", "ownership_percentage": "120"}},
		}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/subjects", tt.body)
			s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	s.Run("unknown field", func() {
		req := httptest.NewRequest(http.MethodPost, "/subjects", bytes.NewBufferString(`{"external_id":"x","individual":{"full_name":"A"},"extra":1}`))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.errorCode(rec))
	})
}

func (s *HandlerSuite) TestPathErrors() {
	rec := s.do(http.MethodGet, "/subjects/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/subjects/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/documents/"+uuid.NewString()+"/verify", map[string]any{})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestReviewErrors() {
	subjectID := s.createIndividual("DE")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/subjects/"+subjectID+"/submit", nil).Code)

	rec := s.do(http.MethodPost, "/subjects/"+subjectID+"/review", map[string]any{"action": "reject"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/review", map[string]any{"action": "approve"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("invalid_state", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/review", map[string]any{"action": "escalate"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/review", map[string]any{"action": "reject", "reason": "fraudulent documents"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var dec DecisionResponse
	s.decode(rec, &dec)
	s.Equal(models.StateRejected, dec.Case.CurrentState)
	s.Equal(models.DecisionRejected, dec.Report.Decision)

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/reopen", map[string]any{"notes": "appeal"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var reopened CaseResponse
	s.decode(rec, &reopened)
	s.Equal(models.StateScreening, reopened.CurrentState)
}

func (s *HandlerSuite) TestTransitionAndAssign() {
	subjectID := s.createIndividual("DE")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/subjects/"+subjectID+"/submit", nil).Code)

	rec := s.do(http.MethodPost, "/subjects/"+subjectID+"/transitions", map[string]any{"to": "doc_review", "notes": "need address"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var moved CaseResponse
	s.decode(rec, &moved)
	s.Equal(models.StateDocReview, moved.CurrentState)

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/transitions", map[string]any{"to": "approved"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/transitions", map[string]any{"to": "nowhere"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/assign", map[string]any{"assignee": "reviewer-7"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var assigned CaseResponse
	s.decode(rec, &assigned)
	s.Equal("reviewer-7", assigned.Assignee)
}

func (s *HandlerSuite) TestDraftEditing() {
	subjectID := s.createIndividual("DE")

	rec := s.do(http.MethodPatch, "/subjects/"+subjectID, map[string]any{"email": "New@Example.test"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var subj models.Subject
	s.decode(rec, &subj)
	s.Equal("new@example.test", subj.Email)

	rec = s.do(http.MethodPatch, "/subjects/"+subjectID, map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/subjects/"+subjectID, map[string]any{"business": map[string]any{"legal_name": "Acme"}})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestListCasesQueryErrors() {
	for _, q := range []string{"limit=abc", "limit=-1", "state=limbo", "created_from=yesterday"} {
		s.Run(q, func() {
			rec := s.do(http.MethodGet, "/cases?"+q, nil)
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
	rec := s.do(http.MethodGet, "/cases?created_from=2020-01-01&created_to=2099-01-01T00:00:00Z", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestVendorPassthrough() {
	s.vendor.SetSources([]ports.Source{{ID: "ofac-sdn", Name: "OFAC SDN", SourceType: models.SourceSanction}})
	rec := s.do(http.MethodGet, "/screening/sources", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var sources SourcesResponse
	s.decode(rec, &sources)
	s.Require().Len(sources.Sources, 1)
	s.Equal("ofac-sdn", sources.Sources[0].ID)

	subjectID := s.createIndividual("DE")
	rec = s.do(http.MethodGet, "/subjects/"+subjectID+"/vendor-report", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var rep VendorReportResponse
	s.decode(rec, &rep)
	s.NotEmpty(rep.PDFBase64)

	s.vendor.FailWith(vendor.Unavailable(errors.New("connection refused")))
	rec = s.do(http.MethodGet, "/screening/sources", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("unavailable", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/submit", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/subjects/"+subjectID+"/screenings", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestCreateUsesRequestClock() {
	pinned := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/subjects", map[string]any{
		"external_id": "cust-clock",
		"business": map[string]any{
			"legal_name":           "Northwind Freight GmbH",
			"registration_number":  "HRB 20931",
			"registration_country": "DE",
		},
	})
	req = testutil.WithRequestTime(testutil.WithActor(req, "analyst.kim"), pinned)

	rec := testutil.DoRequest(http.HandlerFunc(s.handler.HandleCreateSubject), req)
	testutil.AssertStatus(s.T(), rec, http.StatusCreated)
	var subj models.Subject
	s.decode(rec, &subj)
	s.True(subj.CreatedAt.Equal(pinned))
}
