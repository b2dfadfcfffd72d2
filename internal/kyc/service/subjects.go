package service

import (
	"context"
	"fmt"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/requestcontext"
)

// NewSubject carries create_subject input. Exactly one of Individual and
// Business must be set.
type NewSubject struct {
	ExternalID string
	Email      string
	Individual *models.Individual
	Business   *models.Business
	Activity   models.TransactionActivity
}

// SubjectPatch edits a draft. Nil fields are left unchanged; a non-nil
// variant payload replaces the current one and must match the variant.
type SubjectPatch struct {
	Email      *string
	Individual *models.Individual
	Business   *models.Business
	Activity   *models.TransactionActivity
}

// CreateSubject stores a new draft subject. Drafts have no case until
// submission.
func (s *Service) CreateSubject(ctx context.Context, in NewSubject) (*models.Subject, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var (
		subj *models.Subject
		err  error
	)
	switch {
	case in.Individual != nil && in.Business != nil:
		return nil, dErrors.New(dErrors.CodeValidation, "subject must be either an individual or a business")
	case in.Individual != nil:
		subj, err = models.NewIndividualSubject(id.NewSubjectID(), in.ExternalID, in.Email, *in.Individual, now)
	case in.Business != nil:
		subj, err = models.NewBusinessSubject(id.NewSubjectID(), in.ExternalID, in.Email, *in.Business, now)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "individual or business details are required")
	}
	if err != nil {
		return nil, err
	}
	subj.Activity = in.Activity

	err = s.catalog.RunInTx(ctx, func(ctx context.Context, tx ports.Store) error {
		if err := tx.CreateSubject(ctx, subj); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subj.ID,
			Action:    audit.EventSubjectCreated,
			Decision:  string(subj.Variant()),
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logger.InfoContext(ctx, "subject created",
		"subject_id", subj.ID,
		"variant", subj.Variant(),
		"completion", subj.CompletionPercentage,
	)
	return subj, nil
}

// UpdateSubject edits a draft subject. Submitted subjects are immutable
// through this command.
func (s *Service) UpdateSubject(ctx context.Context, subjectID id.SubjectID, patch SubjectPatch) (*models.Subject, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var subj *models.Subject
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		var err error
		subj, err = tx.GetSubject(ctx, subjectID)
		if err != nil {
			return notFound("subject", err)
		}
		if !subj.IsDraft {
			return dErrors.New(dErrors.CodeInvalidState, "only draft subjects can be edited")
		}
		if err := applyPatch(subj, patch); err != nil {
			return err
		}
		if err := subj.Touch(now); err != nil {
			return err
		}
		if err := tx.UpdateSubject(ctx, subj); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventSubjectUpdated,
			ActorID:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return subj, nil
}

func applyPatch(subj *models.Subject, patch SubjectPatch) error {
	if patch.Individual != nil {
		if subj.Variant() != models.VariantIndividual {
			return dErrors.New(dErrors.CodeValidation, "cannot apply individual details to a business subject")
		}
		ind := *patch.Individual
		subj.Individual = &ind
	}
	if patch.Business != nil {
		if subj.Variant() != models.VariantBusiness {
			return dErrors.New(dErrors.CodeValidation, "cannot apply business details to an individual subject")
		}
		biz := *patch.Business
		subj.Business = &biz
	}
	if patch.Email != nil {
		subj.Email = *patch.Email
	}
	if patch.Activity != nil {
		subj.Activity = *patch.Activity
	}
	return nil
}

// SubmitSubject validates a draft, clears the draft flag, and opens its case
// in SUBMITTED.
func (s *Service) SubmitSubject(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	var c *workflow.Case
	err := s.locked(ctx, subjectID, func(ctx context.Context, tx ports.Store) error {
		subj, err := tx.GetSubject(ctx, subjectID)
		if err != nil {
			return notFound("subject", err)
		}
		if !subj.IsDraft {
			return dErrors.New(dErrors.CodeInvalidState, "subject already submitted")
		}
		if err := subj.ValidateForSubmission(); err != nil {
			return err
		}
		subj.ApplySubmission(now)
		if err := tx.UpdateSubject(ctx, subj); err != nil {
			return err
		}

		c = workflow.NewCase(subjectID, now)
		if err := workflow.Transition(c, workflow.Request{
			To: models.StateSubmitted, Actor: actor, Notes: "subject submitted", At: now,
		}); err != nil {
			return err
		}
		if err := tx.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			SubjectID: subjectID,
			Action:    audit.EventSubjectSubmitted,
			ActorID:   actor,
		}); err != nil {
			return err
		}
		return s.recordTransition(ctx, subjectID, models.StateDraft, models.StateSubmitted, actor, "", now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "subject submitted", "subject_id", subjectID)
	return c, nil
}
