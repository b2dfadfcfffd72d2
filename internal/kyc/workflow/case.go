package workflow

import (
	"time"

	"kyccase/internal/kyc/models"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
)

// HistoryEntry records one state change. Entries are append-only.
type HistoryEntry struct {
	From      models.State `json:"from"`
	To        models.State `json:"to"`
	Timestamp time.Time    `json:"timestamp"`
	Actor     string       `json:"actor"`
	Notes     string       `json:"notes,omitempty"`
}

// Case is the workflow state of one Subject. Fields are unexported so every
// state change goes through Transition; stores use Snapshot and Restore.
type Case struct {
	subjectID          id.SubjectID
	state              models.State
	history            []HistoryEntry
	assignee           string
	reviewerNotes      string
	approvedBy         string
	approvalTimestamp  *time.Time
	rejectionReason    string
	screeningTimestamp *time.Time
	nextReviewDate     *time.Time
	riskLevel          models.RiskLevel
	stateEnteredAt     time.Time
	cycle              int
	createdAt          time.Time
	updatedAt          time.Time
}

// NewCase opens a case in DRAFT with empty history.
func NewCase(subjectID id.SubjectID, now time.Time) *Case {
	return &Case{
		subjectID:      subjectID,
		state:          models.StateDraft,
		stateEnteredAt: now,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (c *Case) SubjectID() id.SubjectID             { return c.subjectID }
func (c *Case) State() models.State                 { return c.state }
func (c *Case) Assignee() string                    { return c.assignee }
func (c *Case) ReviewerNotes() string               { return c.reviewerNotes }
func (c *Case) ApprovedBy() string                  { return c.approvedBy }
func (c *Case) ApprovalTimestamp() *time.Time       { return copyTime(c.approvalTimestamp) }
func (c *Case) RejectionReason() string             { return c.rejectionReason }
func (c *Case) ScreeningTimestamp() *time.Time      { return copyTime(c.screeningTimestamp) }
func (c *Case) NextReviewDate() *time.Time          { return copyTime(c.nextReviewDate) }
func (c *Case) RiskLevel() models.RiskLevel         { return c.riskLevel }
func (c *Case) Cycle() int                          { return c.cycle }
func (c *Case) CreatedAt() time.Time                { return c.createdAt }
func (c *Case) UpdatedAt() time.Time                { return c.updatedAt }
func (c *Case) StateEnteredAt() time.Time           { return c.stateEnteredAt }
func (c *Case) History() []HistoryEntry             { return append([]HistoryEntry(nil), c.history...) }
func (c *Case) LastTransition() (HistoryEntry, bool) { return last(c.history) }

// DaysInState counts whole days since the current state was entered.
func (c *Case) DaysInState(now time.Time) int {
	if now.Before(c.stateEnteredAt) {
		return 0
	}
	return int(now.Sub(c.stateEnteredAt).Hours() / 24)
}

// ReviewDue reports whether an approved case has reached its review date.
func (c *Case) ReviewDue(now time.Time) bool {
	return c.state == models.StateApproved && c.nextReviewDate != nil && !now.Before(*c.nextReviewDate)
}

// Snapshot is the persisted form of a Case.
type Snapshot struct {
	SubjectID          id.SubjectID     `json:"subject_id"`
	CurrentState       models.State     `json:"current_state"`
	History            []HistoryEntry   `json:"history"`
	Assignee           string           `json:"assignee,omitempty"`
	ReviewerNotes      string           `json:"reviewer_notes,omitempty"`
	ApprovedBy         string           `json:"approved_by,omitempty"`
	ApprovalTimestamp  *time.Time       `json:"approval_timestamp,omitempty"`
	RejectionReason    string           `json:"rejection_reason,omitempty"`
	ScreeningTimestamp *time.Time       `json:"screening_timestamp,omitempty"`
	NextReviewDate     *time.Time       `json:"next_review_date,omitempty"`
	RiskLevel          models.RiskLevel `json:"risk_level,omitempty"`
	StateEnteredAt     time.Time        `json:"state_entered_at"`
	Cycle              int              `json:"cycle"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Snapshot copies the case into its persisted form.
func (c *Case) Snapshot() Snapshot {
	return Snapshot{
		SubjectID:          c.subjectID,
		CurrentState:       c.state,
		History:            c.History(),
		Assignee:           c.assignee,
		ReviewerNotes:      c.reviewerNotes,
		ApprovedBy:         c.approvedBy,
		ApprovalTimestamp:  copyTime(c.approvalTimestamp),
		RejectionReason:    c.rejectionReason,
		ScreeningTimestamp: copyTime(c.screeningTimestamp),
		NextReviewDate:     copyTime(c.nextReviewDate),
		RiskLevel:          c.riskLevel,
		StateEnteredAt:     c.stateEnteredAt,
		Cycle:              c.cycle,
		CreatedAt:          c.createdAt,
		UpdatedAt:          c.updatedAt,
	}
}

// Restore rebuilds a Case from storage. It rejects snapshots whose current
// state disagrees with the last history entry.
func Restore(s Snapshot) (*Case, error) {
	if s.SubjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case snapshot has no subject")
	}
	if _, err := models.ParseState(string(s.CurrentState)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "case snapshot has unknown state")
	}
	expected := models.StateDraft
	if entry, ok := last(s.History); ok {
		expected = entry.To
	}
	if s.CurrentState != expected {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"case state "+string(s.CurrentState)+" disagrees with history "+string(expected))
	}
	return &Case{
		subjectID:          s.SubjectID,
		state:              s.CurrentState,
		history:            append([]HistoryEntry(nil), s.History...),
		assignee:           s.Assignee,
		reviewerNotes:      s.ReviewerNotes,
		approvedBy:         s.ApprovedBy,
		approvalTimestamp:  copyTime(s.ApprovalTimestamp),
		rejectionReason:    s.RejectionReason,
		screeningTimestamp: copyTime(s.ScreeningTimestamp),
		nextReviewDate:     copyTime(s.NextReviewDate),
		riskLevel:          s.RiskLevel,
		stateEnteredAt:     s.StateEnteredAt,
		cycle:              s.Cycle,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}, nil
}

func last(h []HistoryEntry) (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[len(h)-1], true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
