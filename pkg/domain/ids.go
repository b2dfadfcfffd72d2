// Package domain holds typed identifiers shared across the case engine.
//
// Each identifier is a distinct named UUID type so a document ID can never be
// passed where a subject ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "kyccase/pkg/domain-errors"
)

type (
	SubjectID  uuid.UUID
	DocumentID uuid.UUID
	ResultID   uuid.UUID
	ReportID   uuid.UUID
)

func NewSubjectID() SubjectID   { return SubjectID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }
func NewResultID() ResultID     { return ResultID(uuid.New()) }
func NewReportID() ReportID     { return ReportID(uuid.New()) }

func (id SubjectID) String() string  { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id ResultID) String() string   { return uuid.UUID(id).String() }
func (id ReportID) String() string   { return uuid.UUID(id).String() }

func (id SubjectID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResultID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id SubjectID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ResultID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ReportID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *SubjectID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ResultID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReportID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseSubjectID parses a non-nil UUID into a SubjectID.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parse(s, "subject_id")
	return SubjectID(u), err
}

// ParseDocumentID parses a non-nil UUID into a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parse(s, "document_id")
	return DocumentID(u), err
}

// ParseResultID parses a non-nil UUID into a ResultID.
func ParseResultID(s string) (ResultID, error) {
	u, err := parse(s, "result_id")
	return ResultID(u), err
}

// ParseReportID parses a non-nil UUID into a ReportID.
func ParseReportID(s string) (ReportID, error) {
	u, err := parse(s, "report_id")
	return ReportID(u), err
}

func parse(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
