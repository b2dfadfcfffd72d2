package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/sentinel"
	"kyccase/pkg/requestcontext"
)

// ReviewAction is the manual decision on a case.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewInput struct {
	Action ReviewAction
	Reason string
	Notes  string
}

// Decision is the outcome of a review or a report regeneration.
type Decision struct {
	Case   *workflow.Case
	Report *models.Report
}

// CaseView is everything get_case returns about one subject.
type CaseView struct {
	Subject          *models.Subject
	Case             *workflow.Case
	Documents        []*models.Document
	Result           *models.ScreeningResult
	Report           *models.Report
	MissingDocuments []string
	DaysInState      int
}

// manualTargets are the states reachable through the generic transition
// command; screening, approval, and rejection have dedicated commands.
var manualTargets = map[models.State]struct{}{
	models.StateDocReview:       {},
	models.StateInvestigation:   {},
	models.StateApprovalPending: {},
}

// Review approves or rejects a case. Approving from SCREENING or
// INVESTIGATION passes through APPROVAL_PENDING first, and approval needs a
// screening result for the current cycle.
func (s *Service) Review(ctx context.Context, subjectID id.SubjectID, in ReviewInput) (*Decision, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var out Decision
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		subj, c, facts, err := s.loadForDecision(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		before := len(c.History())

		switch in.Action {
		case ReviewApprove:
			if c.State() == models.StateScreening || c.State() == models.StateInvestigation {
				if err := workflow.Transition(c, workflow.Request{
					To: models.StateApprovalPending, Actor: actor, Notes: in.Notes, At: now, Facts: facts,
				}); err != nil {
					return err
				}
			}
			// an aborted cycle deletes the prior result; approving then would skip every screening guard
			if facts.Governing == nil && c.State() == models.StateApprovalPending {
				return dErrors.New(dErrors.CodeInvalidState, "case has no screening result for this cycle; run screening before approving")
			}
			if err := workflow.Transition(c, workflow.Request{
				To: models.StateApproved, Actor: actor, Notes: in.Notes, At: now, Facts: facts,
			}); err != nil {
				return err
			}
		case ReviewReject:
			if err := workflow.Transition(c, workflow.Request{
				To: models.StateRejected, Actor: actor, Reason: in.Reason, Notes: in.Notes, At: now, Facts: facts,
			}); err != nil {
				return err
			}
		default:
			return dErrors.New(dErrors.CodeValidation, "action must be approve or reject")
		}

		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		for _, h := range c.History()[before:] {
			if err := s.recordTransition(ctx, subjectID, h.From, h.To, actor, in.Reason, now); err != nil {
				return err
			}
		}
		rep, err := s.reports.Build(ctx, tx, subj, c, facts.Governing, actor, now)
		if err != nil {
			return err
		}
		out = Decision{Case: c, Report: rep}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "case reviewed",
		"subject_id", subjectID,
		"action", in.Action,
		"state", out.Case.State(),
	)
	return &out, nil
}

// Reopen moves a terminal case back to SCREENING. The current report is
// superseded and kept.
func (s *Service) Reopen(ctx context.Context, subjectID id.SubjectID, notes string) (*workflow.Case, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var c *workflow.Case
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		var err error
		c, err = tx.GetCaseForUpdate(ctx, subjectID)
		if err != nil {
			return notFound("case", err)
		}
		from := c.State()
		if err := workflow.Reopen(c, actor, notes, now); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}

		current, err := tx.CurrentReport(ctx, subjectID)
		switch {
		case err == nil:
			current.Supersede(now)
			if err := tx.SaveReport(ctx, current); err != nil {
				return fmt.Errorf("supersede report: %w", err)
			}
		case !errors.Is(err, sentinel.ErrNotFound):
			return fmt.Errorf("load current report: %w", err)
		}

		if err := s.recordTransition(ctx, subjectID, from, c.State(), actor, notes, now); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventCaseReopened,
			Decision:  string(from),
			Reason:    notes,
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Assign sets the reviewer responsible for a case.
func (s *Service) Assign(ctx context.Context, subjectID id.SubjectID, assignee string) (*workflow.Case, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var c *workflow.Case
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		var err error
		c, err = tx.GetCaseForUpdate(ctx, subjectID)
		if err != nil {
			return notFound("case", err)
		}
		if err := workflow.Assign(c, assignee, now); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventCaseAssigned,
			Decision:  c.Assignee(),
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// TransitionInput drives manual DOC_REVIEW, INVESTIGATION, and
// APPROVAL_PENDING moves.
type TransitionInput struct {
	To     models.State
	Notes  string
	Reason string
}

func (s *Service) Transition(ctx context.Context, subjectID id.SubjectID, in TransitionInput) (*workflow.Case, error) {
	if _, ok := manualTargets[in.To]; !ok {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s is not a manual transition target; use the screening or review commands", in.To))
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var c *workflow.Case
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		_, loaded, facts, err := s.loadForDecision(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		c = loaded
		from := c.State()
		if err := workflow.Transition(c, workflow.Request{
			To: in.To, Actor: actor, Notes: in.Notes, Reason: in.Reason, At: now, Facts: facts,
		}); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		return s.recordTransition(ctx, subjectID, from, c.State(), actor, in.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GenerateReport regenerates the report for a terminal case, superseding
// the current one.
func (s *Service) GenerateReport(ctx context.Context, subjectID id.SubjectID) (*models.Report, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var rep *models.Report
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		subj, c, facts, err := s.loadForDecision(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		rep, err = s.reports.Build(ctx, tx, subj, c, facts.Governing, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// RenderReport renders the subject's current report.
func (s *Service) RenderReport(ctx context.Context, subjectID id.SubjectID) ([]byte, string, error) {
	rep, err := s.catalog.CurrentReport(ctx, subjectID)
	if err != nil {
		return nil, "", translate(notFound("report", err))
	}
	return s.reports.Render(ctx, rep)
}

// CaseQuery is the list_cases filter as received from callers.
type CaseQuery struct {
	State       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

func (s *Service) ListCases(ctx context.Context, q CaseQuery) ([]*workflow.Case, error) {
	filter := ports.CaseFilter{CreatedFrom: q.CreatedFrom, CreatedTo: q.CreatedTo, Limit: q.Limit}
	if q.State != "" {
		st, err := models.ParseState(strings.ToUpper(q.State))
		if err != nil {
			return nil, err
		}
		filter.State = st
	}
	if q.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	cases, err := s.catalog.ListCases(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return cases, nil
}

// GetCase assembles the subject, its case, documents, latest result, and
// current report. Draft subjects come back without a case.
func (s *Service) GetCase(ctx context.Context, subjectID id.SubjectID) (*CaseView, error) {
	now := requestcontext.Now(ctx)
	subj, err := s.catalog.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, translate(notFound("subject", err))
	}
	view := &CaseView{Subject: subj}

	if view.Documents, err = s.catalog.ListDocuments(ctx, subjectID); err != nil {
		return nil, translate(err)
	}
	view.MissingDocuments = models.MissingRequirements(subj.RequiredDocuments(), view.Documents)

	if view.Case, err = optional(s.catalog.GetCase(ctx, subjectID)); err != nil {
		return nil, translate(err)
	}
	if view.Case != nil {
		view.DaysInState = view.Case.DaysInState(now)
	}
	if view.Result, err = optional(s.catalog.LatestResult(ctx, subjectID)); err != nil {
		return nil, translate(err)
	}
	if view.Report, err = optional(s.catalog.CurrentReport(ctx, subjectID)); err != nil {
		return nil, translate(err)
	}
	return view, nil
}

// loadForDecision reads the subject, locks the case, and gathers the guard
// facts. A subject never screened has a nil governing result.
func (s *Service) loadForDecision(ctx context.Context, tx ports.Store, subjectID id.SubjectID) (*models.Subject, *workflow.Case, workflow.Facts, error) {
	subj, err := tx.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, nil, workflow.Facts{}, notFound("subject", err)
	}
	c, err := tx.GetCaseForUpdate(ctx, subjectID)
	if err != nil {
		return nil, nil, workflow.Facts{}, notFound("case", err)
	}
	docs, err := tx.ListDocuments(ctx, subjectID)
	if err != nil {
		return nil, nil, workflow.Facts{}, err
	}
	governing, err := optional(tx.LatestResult(ctx, subjectID))
	if err != nil {
		return nil, nil, workflow.Facts{}, err
	}
	return subj, c, workflow.Facts{
		Requirements: subj.RequiredDocuments(),
		Documents:    docs,
		Governing:    governing,
	}, nil
}

// optional turns sentinel.ErrNotFound into a nil value.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
