package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transition failures for callers. Storage and commit
// failures are deliberately not a kind: they surface as plain errors so they
// cannot be mistaken for a rule rejection.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindForbidden      ErrorKind = "forbidden"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindConflict       ErrorKind = "conflict"
)

// TransitionError is a rejected transition. Kind says why; Message is safe to
// return to the caller verbatim.
type TransitionError struct {
	Kind    ErrorKind
	CaseID  string
	Message string
}

func (e *TransitionError) Error() string {
	if e.CaseID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: case %s: %s", e.Kind, e.CaseID, e.Message)
}

func notFoundError(caseID string) *TransitionError {
	return &TransitionError{Kind: KindNotFound, CaseID: caseID, Message: "case does not exist"}
}

func forbiddenError(caseID, format string, args ...any) *TransitionError {
	return &TransitionError{Kind: KindForbidden, CaseID: caseID, Message: fmt.Sprintf(format, args...)}
}

func invalidRequestError(caseID, format string, args ...any) *TransitionError {
	return &TransitionError{Kind: KindInvalidRequest, CaseID: caseID, Message: fmt.Sprintf(format, args...)}
}

func conflictError(caseID string) *TransitionError {
	return &TransitionError{Kind: KindConflict, CaseID: caseID, Message: "case changed since it was read, retry with fresh state"}
}

// KindOf returns the transition error kind, or "" for storage and other
// non-rule errors.
func KindOf(err error) ErrorKind {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
