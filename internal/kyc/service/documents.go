package service

import (
	"context"
	"time"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	id "kyccase/pkg/domain"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/requestcontext"
)

// NewDocument carries upload_document input. The file itself lives in
// external storage; FileRef points at it.
type NewDocument struct {
	Kind             models.DocumentKind
	FileRef          string
	IssueDate        *time.Time
	ExpiryDate       *time.Time
	IssuingAuthority string
}

func (s *Service) UploadDocument(ctx context.Context, subjectID id.SubjectID, in NewDocument) (*models.Document, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var doc *models.Document
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		if _, err := tx.GetSubject(ctx, subjectID); err != nil {
			return notFound("subject", err)
		}
		var err error
		doc, err = models.NewDocument(id.NewDocumentID(), subjectID, in.Kind, in.FileRef, in.IssueDate, in.ExpiryDate, in.IssuingAuthority, now)
		if err != nil {
			return err
		}
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventDocumentUploaded,
			Decision:  string(doc.Kind),
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// VerifyDocument marks a PENDING document VERIFIED by the acting reviewer.
func (s *Service) VerifyDocument(ctx context.Context, docID id.DocumentID, notes string) (*models.Document, error) {
	actor := requestcontext.Actor(ctx)
	return s.reviewDocument(ctx, docID, audit.EventDocumentVerified, "", func(d *models.Document, now time.Time) error {
		return d.Verify(actor, notes, now)
	})
}

// RejectDocument marks a PENDING document REJECTED; reason is required.
func (s *Service) RejectDocument(ctx context.Context, docID id.DocumentID, reason string) (*models.Document, error) {
	actor := requestcontext.Actor(ctx)
	return s.reviewDocument(ctx, docID, audit.EventDocumentRejected, reason, func(d *models.Document, now time.Time) error {
		return d.Reject(actor, reason, now)
	})
}

func (s *Service) reviewDocument(ctx context.Context, docID id.DocumentID, action audit.AuditEvent, reason string, apply func(*models.Document, time.Time) error) (*models.Document, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	// the subject is needed to take its lock; the document is reloaded inside
	found, err := s.catalog.GetDocument(ctx, docID)
	if err != nil {
		return nil, translate(notFound("document", err))
	}

	var doc *models.Document
	err = s.locked(ctx, found.SubjectID, func(ctx context.Context, tx ports.Store) error {
		var err error
		doc, err = tx.GetDocument(ctx, docID)
		if err != nil {
			return notFound("document", err)
		}
		if err := apply(doc, now); err != nil {
			return err
		}
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: doc.SubjectID,
			Action:    action,
			Decision:  string(doc.Status),
			Reason:    reason,
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document reviewed",
		"subject_id", doc.SubjectID,
		"document_id", doc.ID,
		"status", doc.Status,
	)
	return doc, nil
}
