package workflow

import (
	"errors"
	"fmt"
	"strings"

	"kyccase/internal/kyc/models"
	dErrors "kyccase/pkg/domain-errors"
)

// Kind classifies a rejected transition.
type Kind string

const (
	KindIllegalTransition        Kind = "IllegalTransition"
	KindMissingReason            Kind = "MissingReason"
	KindMissingRequiredDocuments Kind = "MissingRequiredDocuments"
	KindAutoRejectRequired       Kind = "AutoRejectRequired"
)

// TransitionError names the offending transition so callers can remediate.
type TransitionError struct {
	Kind    Kind
	From    models.State
	To      models.State
	Missing []string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
	if len(e.Missing) > 0 {
		msg += " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

func newTransitionError(kind Kind, from, to models.State, missing []string) error {
	te := &TransitionError{Kind: kind, From: from, To: to, Missing: missing}
	code := dErrors.CodeInvalidState
	if kind == KindMissingReason {
		code = dErrors.CodeValidation
	}
	return dErrors.Wrap(te, code, te.Error())
}

// IsKind reports whether err carries a TransitionError of kind.
func IsKind(err error, kind Kind) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Kind == kind
}
