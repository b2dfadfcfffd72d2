package models

import (
	"strings"

	dErrors "kyccase/pkg/domain-errors"
)

// State is a case workflow state.
type State string

const (
	StateDraft           State = "DRAFT"
	StateSubmitted       State = "SUBMITTED"
	StateDocReview       State = "DOC_REVIEW"
	StateScreening       State = "SCREENING"
	StateInvestigation   State = "INVESTIGATION"
	StateApprovalPending State = "APPROVAL_PENDING"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StateExpired         State = "EXPIRED"
)

// States lists every state in pipeline order.
var States = []State{
	StateDraft, StateSubmitted, StateDocReview, StateScreening, StateInvestigation,
	StateApprovalPending, StateApproved, StateRejected, StateExpired,
}

// ParseState validates a state name.
func ParseState(s string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range States {
		if st == known {
			return st, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown case state: "+s)
}

// IsTerminal reports whether the state closes a decision cycle.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// Decision maps a terminal state to its report decision.
func (s State) Decision() (Decision, bool) {
	switch s {
	case StateApproved:
		return DecisionApproved, true
	case StateRejected:
		return DecisionRejected, true
	}
	return "", false
}
