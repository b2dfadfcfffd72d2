// Package workflow owns the case state machine.
//
// Every state change goes through Transition, which checks the transition
// table and the guards below in this order (fail-fast):
//  1. edge must exist in the table (IllegalTransition)
//  2. a governing sanctions or blacklist hit only allows REJECTED out of
//     SCREENING and APPROVAL_PENDING (AutoRejectRequired)
//  3. REJECTED needs a reason (MissingReason)
//  4. APPROVAL_PENDING to APPROVED needs every required document VERIFIED
//     (MissingRequiredDocuments)
package workflow

import (
	"strings"
	"time"

	"kyccase/internal/kyc/models"
	dErrors "kyccase/pkg/domain-errors"
)

var table = map[models.State][]models.State{
	models.StateDraft:           {models.StateSubmitted},
	models.StateSubmitted:       {models.StateDocReview, models.StateScreening, models.StateRejected},
	models.StateDocReview:       {models.StateScreening, models.StateInvestigation, models.StateRejected},
	models.StateScreening:       {models.StateInvestigation, models.StateApprovalPending, models.StateRejected},
	models.StateInvestigation:   {models.StateApprovalPending, models.StateRejected},
	models.StateApprovalPending: {models.StateApproved, models.StateRejected},
	models.StateApproved:        {models.StateExpired, models.StateScreening},
	models.StateRejected:        {models.StateScreening},
	models.StateExpired:         {models.StateScreening},
}

// Allowed reports whether from to to is in the transition table.
func Allowed(from, to models.State) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets lists the states reachable from from.
func Targets(from models.State) []models.State {
	return append([]models.State(nil), table[from]...)
}

// Facts are the inputs the guards need beyond the case itself.
type Facts struct {
	Requirements []models.Requirement
	Documents    []*models.Document
	// Governing is the latest ScreeningResult; nil when the subject was never screened.
	Governing *models.ScreeningResult
}

// Request describes one transition.
type Request struct {
	To     models.State
	Actor  string
	Notes  string
	Reason string
	At     time.Time
	Facts  Facts
}

// Transition validates req against the table and guards, then applies it.
// On error the case is unchanged.
func Transition(c *Case, req Request) error {
	from := c.state
	if !Allowed(from, req.To) {
		return newTransitionError(KindIllegalTransition, from, req.To, nil)
	}

	gov := req.Facts.Governing
	if gov != nil && gov.RequiresAutoReject() && req.To != models.StateRejected &&
		(from == models.StateScreening || from == models.StateApprovalPending) {
		return newTransitionError(KindAutoRejectRequired, from, req.To, nil)
	}

	reason := strings.TrimSpace(req.Reason)
	if req.To == models.StateRejected && reason == "" {
		return newTransitionError(KindMissingReason, from, req.To, nil)
	}

	if from == models.StateApprovalPending && req.To == models.StateApproved {
		if missing := models.MissingRequirements(req.Facts.Requirements, req.Facts.Documents); len(missing) > 0 {
			return newTransitionError(KindMissingRequiredDocuments, from, req.To, missing)
		}
	}

	apply(c, req, reason)
	return nil
}

func apply(c *Case, req Request, reason string) {
	at := req.At
	actor := strings.TrimSpace(req.Actor)
	notes := strings.TrimSpace(req.Notes)

	c.history = append(c.history, HistoryEntry{
		From:      c.state,
		To:        req.To,
		Timestamp: at,
		Actor:     actor,
		Notes:     notes,
	})
	c.state = req.To
	c.stateEnteredAt = at
	c.updatedAt = at
	if notes != "" {
		c.reviewerNotes = notes
	}

	switch req.To {
	case models.StateApproved:
		level := models.RiskHigh
		if req.Facts.Governing != nil && req.Facts.Governing.RiskLevel != "" {
			level = req.Facts.Governing.RiskLevel
		}
		next := at.Add(models.Cadence(level))
		c.approvedBy = actor
		c.approvalTimestamp = &at
		c.riskLevel = level
		c.nextReviewDate = &next
		c.rejectionReason = ""
		c.cycle++
	case models.StateRejected:
		c.rejectionReason = reason
		c.cycle++
	case models.StateScreening:
		c.screeningTimestamp = &at
	}
}

// Reopen moves a terminal case back to SCREENING, keeping its history.
func Reopen(c *Case, actor, notes string, at time.Time) error {
	if !c.state.IsTerminal() {
		return newTransitionError(KindIllegalTransition, c.state, models.StateScreening, nil)
	}
	return Transition(c, Request{To: models.StateScreening, Actor: actor, Notes: notes, At: at})
}

// Expire moves an approved case past its review date to EXPIRED.
func Expire(c *Case, actor string, at time.Time) error {
	if !c.ReviewDue(at) {
		return dErrors.New(dErrors.CodeInvalidState, "case is not due for review")
	}
	return Transition(c, Request{To: models.StateExpired, Actor: actor, Notes: "review date passed", At: at})
}

// Assign sets the reviewer responsible for the case. No state change.
func Assign(c *Case, assignee string, at time.Time) error {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return dErrors.New(dErrors.CodeValidation, "assignee is required")
	}
	c.assignee = assignee
	c.updatedAt = at
	return nil
}
