package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/service"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	"kyccase/pkg/platform/httputil"
	"kyccase/pkg/requestcontext"
)

// Service is the set of case engine commands exposed over HTTP.
type Service interface {
	CreateSubject(ctx context.Context, in service.NewSubject) (*models.Subject, error)
	UpdateSubject(ctx context.Context, subjectID id.SubjectID, patch service.SubjectPatch) (*models.Subject, error)
	SubmitSubject(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error)
	UploadDocument(ctx context.Context, subjectID id.SubjectID, in service.NewDocument) (*models.Document, error)
	VerifyDocument(ctx context.Context, docID id.DocumentID, notes string) (*models.Document, error)
	RejectDocument(ctx context.Context, docID id.DocumentID, reason string) (*models.Document, error)
	RunScreening(ctx context.Context, subjectID id.SubjectID) (*screening.Outcome, error)
	Review(ctx context.Context, subjectID id.SubjectID, in service.ReviewInput) (*service.Decision, error)
	Reopen(ctx context.Context, subjectID id.SubjectID, notes string) (*workflow.Case, error)
	GenerateReport(ctx context.Context, subjectID id.SubjectID) (*models.Report, error)
	RenderReport(ctx context.Context, subjectID id.SubjectID) ([]byte, string, error)
	Assign(ctx context.Context, subjectID id.SubjectID, assignee string) (*workflow.Case, error)
	Transition(ctx context.Context, subjectID id.SubjectID, in service.TransitionInput) (*workflow.Case, error)
	ListCases(ctx context.Context, q service.CaseQuery) ([]*workflow.Case, error)
	GetCase(ctx context.Context, subjectID id.SubjectID) (*service.CaseView, error)
	ListSources(ctx context.Context) ([]ports.Source, error)
	VendorReport(ctx context.Context, subjectID id.SubjectID) (*ports.VendorReport, error)
}

// Handler wires case engine endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts case engine endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/subjects", h.HandleCreateSubject)
	r.Route("/subjects/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetCase)
		r.Patch("/", h.HandleUpdateSubject)
		r.Post("/submit", h.HandleSubmitSubject)
		r.Post("/documents", h.HandleUploadDocument)
		r.Post("/screenings", h.HandleRunScreening)
		r.Post("/review", h.HandleReview)
		r.Post("/reopen", h.HandleReopen)
		r.Post("/reports", h.HandleGenerateReport)
		r.Get("/report", h.HandleRenderReport)
		r.Post("/assign", h.HandleAssign)
		r.Post("/transitions", h.HandleTransition)
		r.Get("/vendor-report", h.HandleVendorReport)
	})
	r.Post("/documents/{id}/verify", h.HandleVerifyDocument)
	r.Post("/documents/{id}/reject", h.HandleRejectDocument)
	r.Get("/cases", h.HandleListCases)
	r.Get("/screening/sources", h.HandleListSources)
}

// HandleCreateSubject handles POST /subjects.
func (h *Handler) HandleCreateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSubjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	subj, err := h.service.CreateSubject(ctx, req.ToNewSubject())
	if err != nil {
		h.fail(w, ctx, "create subject failed", err, "external_id", req.ExternalID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, subj)
}

// HandleUpdateSubject handles PATCH /subjects/{id}.
func (h *Handler) HandleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateSubjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	subj, err := h.service.UpdateSubject(ctx, subjectID, req.ToPatch())
	if err != nil {
		h.fail(w, ctx, "update subject failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, subj)
}

// HandleSubmitSubject handles POST /subjects/{id}/submit.
func (h *Handler) HandleSubmitSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	c, err := h.service.SubmitSubject(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "submit subject failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleUploadDocument handles POST /subjects/{id}/documents.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UploadDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.UploadDocument(ctx, subjectID, req.ToNewDocument())
	if err != nil {
		h.fail(w, ctx, "upload document failed", err, "subject_id", subjectID, "kind", req.Kind)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// HandleVerifyDocument handles POST /documents/{id}/verify.
func (h *Handler) HandleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.VerifyDocument(ctx, docID, req.Notes)
	if err != nil {
		h.fail(w, ctx, "verify document failed", err, "document_id", docID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleRejectDocument handles POST /documents/{id}/reject.
func (h *Handler) HandleRejectDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.RejectDocument(ctx, docID, req.Reason)
	if err != nil {
		h.fail(w, ctx, "reject document failed", err, "document_id", docID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleRunScreening handles POST /subjects/{id}/screenings.
func (h *Handler) HandleRunScreening(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	out, err := h.service.RunScreening(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "screening failed", err, "subject_id", subjectID)
		return
	}
	h.logger.InfoContext(ctx, "screening completed",
		"request_id", requestcontext.RequestID(ctx),
		"subject_id", subjectID,
		"state", out.Case.State(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(out))
}

// HandleReview handles POST /subjects/{id}/review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	dec, err := h.service.Review(ctx, subjectID, service.ReviewInput{
		Action: service.ReviewAction(req.Action),
		Reason: req.Reason,
		Notes:  req.Notes,
	})
	if err != nil {
		h.fail(w, ctx, "review failed", err, "subject_id", subjectID, "action", req.Action)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{Case: FromCase(dec.Case), Report: dec.Report})
}

// HandleReopen handles POST /subjects/{id}/reopen.
func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReopenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Reopen(ctx, subjectID, req.Notes)
	if err != nil {
		h.fail(w, ctx, "reopen failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleGenerateReport handles POST /subjects/{id}/reports.
func (h *Handler) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	rep, err := h.service.GenerateReport(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "report generation failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rep)
}

// HandleRenderReport handles GET /subjects/{id}/report.
func (h *Handler) HandleRenderReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	body, contentType, err := h.service.RenderReport(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "report rendering failed", err, "subject_id", subjectID)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleAssign handles POST /subjects/{id}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Assign(ctx, subjectID, req.Assignee)
	if err != nil {
		h.fail(w, ctx, "assign failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleTransition handles POST /subjects/{id}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Transition(ctx, subjectID, service.TransitionInput{
		To:     req.ParsedState(),
		Notes:  req.Notes,
		Reason: req.Reason,
	})
	if err != nil {
		h.fail(w, ctx, "transition failed", err, "subject_id", subjectID, "to", req.To)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleListCases handles GET /cases.
func (h *Handler) HandleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseCaseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cases, err := h.service.ListCases(ctx, q)
	if err != nil {
		h.fail(w, ctx, "list cases failed", err, "state", q.State)
		return
	}
	out := make([]*CaseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, FromCase(c))
	}
	httputil.WriteJSON(w, http.StatusOK, CaseListResponse{Cases: out, Count: len(out)})
}

// HandleGetCase handles GET /subjects/{id}.
func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetCase(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "get case failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleListSources handles GET /screening/sources.
func (h *Handler) HandleListSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sources, err := h.service.ListSources(ctx)
	if err != nil {
		h.fail(w, ctx, "list sources failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SourcesResponse{Sources: sources})
}

// HandleVendorReport handles GET /subjects/{id}/vendor-report.
func (h *Handler) HandleVendorReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	rep, err := h.service.VendorReport(ctx, subjectID)
	if err != nil {
		h.fail(w, ctx, "vendor report failed", err, "subject_id", subjectID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VendorReportResponse{SubjectID: subjectID, PDFBase64: rep.PDFBase64})
}

func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) subjectID(w http.ResponseWriter, r *http.Request) (id.SubjectID, bool) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SubjectID{}, false
	}
	return subjectID, true
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocumentID{}, false
	}
	return docID, true
}

func parseCaseQuery(r *http.Request) (service.CaseQuery, error) {
	values := r.URL.Query()
	q := service.CaseQuery{State: values.Get("state")}
	var err error
	if q.CreatedFrom, err = parseTimeParam(values.Get("created_from"), "created_from"); err != nil {
		return q, err
	}
	if q.CreatedTo, err = parseTimeParam(values.Get("created_to"), "created_to"); err != nil {
		return q, err
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeValidation, "limit must be an integer")
		}
		q.Limit = limit
	}
	return q, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, field+" must be RFC 3339 or YYYY-MM-DD")
}
