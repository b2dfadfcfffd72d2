package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "kyccase/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: case
	// decisions, screening outcomes, document verification. These require
	// guaranteed persistence and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SubjectID id.SubjectID
	Action    string
	// Decision is the outcome of the action, e.g. the target state of a
	// transition or the kyc_status of a screening.
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

type AuditEvent string

const (
	// Subject events
	EventSubjectCreated   AuditEvent = "subject_created"
	EventSubjectUpdated   AuditEvent = "subject_updated"
	EventSubjectSubmitted AuditEvent = "subject_submitted"

	// Document events
	EventDocumentUploaded AuditEvent = "document_uploaded"
	EventDocumentVerified AuditEvent = "document_verified"
	EventDocumentRejected AuditEvent = "document_rejected"

	// Case events
	EventCaseTransitioned AuditEvent = "case_transitioned"
	EventCaseAssigned     AuditEvent = "case_assigned"
	EventCaseReopened     AuditEvent = "case_reopened"
	EventCaseExpired      AuditEvent = "case_expired"

	EventScreeningCompleted AuditEvent = "screening_completed"
	EventReportGenerated    AuditEvent = "report_generated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSubjectCreated:     CategoryCompliance,
	EventSubjectSubmitted:   CategoryCompliance,
	EventDocumentVerified:   CategoryCompliance,
	EventDocumentRejected:   CategoryCompliance,
	EventCaseTransitioned:   CategoryCompliance,
	EventCaseReopened:       CategoryCompliance,
	EventCaseExpired:        CategoryCompliance,
	EventScreeningCompleted: CategoryCompliance,
	EventReportGenerated:    CategoryCompliance,

	EventSubjectUpdated:   CategoryOperations,
	EventDocumentUploaded: CategoryOperations,
	EventCaseAssigned:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures regulatory-significant actions requiring
// guaranteed persistence. Use with the compliance publisher for fail-closed
// semantics.
type ComplianceEvent struct {
	Timestamp time.Time    // set automatically if zero
	SubjectID id.SubjectID // required
	Action    AuditEvent
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  e.Action.Category(),
		Timestamp: e.Timestamp,
		SubjectID: e.SubjectID,
		Action:    string(e.Action),
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// Store persists audit events. Append joins the caller's transaction when
// one is carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}

// OutboxEntry is an audit event waiting to be relayed to the event log.
type OutboxEntry struct {
	ID        uuid.UUID
	SubjectID string
	EventType string
	Payload   []byte
}
