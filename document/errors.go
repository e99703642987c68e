/*
errors.go - Centralized error types for the document engine

PURPOSE:
  All error conditions of the engine in one place. Every failure is a
  local, recoverable condition surfaced as a typed result; there is no
  crash path.

ERROR CATEGORIES:
  1. Workflow errors  - illegal transitions, missing permissions
  2. Store errors     - missing or duplicate records
  3. Posting errors   - duplicate or concurrent ledger posts
  4. Input errors     - invalid monetary amounts

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, document.ErrInvalidTransition) {
        // rejected action, show to the user
    }
*/
package document

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when an action is not legal for
	// the document's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotPermitted is returned when the acting user's role or
	// ownership does not allow the action.
	ErrNotPermitted = errors.New("action not permitted for actor")

	// ErrCommentRequired is returned when reject or return is attempted
	// without a comment.
	ErrCommentRequired = errors.New("comment required")

	// ErrNotFound is returned by write operations on a missing document.
	// Reads return (nil, nil) instead.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateID is returned when adding a record whose ID already
	// exists in its collection.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrDuplicatePosting is returned when posting a document that
	// already has a ledger posting.
	ErrDuplicatePosting = errors.New("document already posted")

	// ErrPostingInFlight is returned when a posting for the same
	// document is still awaiting completion.
	ErrPostingInFlight = errors.New("posting already in flight")

	// ErrInvalidAmount is returned for negative or non-finite monetary
	// input. Bad input is rejected, never coerced to zero.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotApproved is returned when posting a document that is not in
	// a postable status.
	ErrNotApproved = errors.New("document not approved")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports the exact (status, action) pair that
// was refused.
type InvalidTransitionError struct {
	Type   DocType
	Status Status
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s document in status %q", e.Action, e.Type, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotPermittedError reports which actor was refused an action.
type NotPermittedError struct {
	Action Action
	Role   Role
	UserID UserID
	Reason string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("%s by %s (%s) not permitted: %s", e.Action, e.UserID, e.Role, e.Reason)
}

func (e *NotPermittedError) Unwrap() error { return ErrNotPermitted }

// InvalidAmountError reports the offending field and value.
type InvalidAmountError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %v (%s)", e.Field, e.Value, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid caller
// input or an illegal action, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotPermitted) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicatePosting) ||
		errors.Is(err, ErrPostingInFlight) ||
		errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound reports whether the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
