package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian/finrequest/document"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	owner      = document.Actor{ID: "emp-1", Role: document.RoleEmployee}
	otherUser  = document.Actor{ID: "emp-2", Role: document.RoleEmployee}
	manager    = document.Actor{ID: "mgr-1", Role: document.RoleManager}
	accounting = document.Actor{ID: "acct-1", Role: document.RoleAccounting}
)

func docIn(t document.DocType, status document.Status) *document.Document {
	return &document.Document{
		ID:          "doc-1",
		Type:        t,
		Status:      status,
		RequesterID: owner.ID,
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestResolve_SubmitFromDraft(t *testing.T) {
	// GIVEN: A draft owned by emp-1
	// WHEN: The owner submits
	// THEN: Target status is pendingApproval

	to, err := document.Resolve(docIn(document.DocAdvance, document.StatusDraft), document.ActionSubmit, owner, "")
	assert.NoError(t, err)
	assert.Equal(t, document.StatusPendingApproval, to)
}

func TestResolve_SubmitOwnerOnly(t *testing.T) {
	// GIVEN: A draft owned by emp-1
	// WHEN: A different user (even a manager) submits
	// THEN: Rejected with ErrNotPermitted

	_, err := document.Resolve(docIn(document.DocAdvance, document.StatusDraft), document.ActionSubmit, otherUser, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted)

	_, err = document.Resolve(docIn(document.DocAdvance, document.StatusDraft), document.ActionSubmit, manager, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted, "ownership, not role, gates submit")
}

func TestResolve_ResubmitFromReturnedAndRejected(t *testing.T) {
	for _, status := range []document.Status{document.StatusReturned, document.StatusRejected} {
		to, err := document.Resolve(docIn(document.DocExpense, status), document.ActionSubmit, owner, "")
		assert.NoError(t, err, "resubmit from %s", status)
		assert.Equal(t, document.StatusPendingApproval, to)
	}
}

// =============================================================================
// MANAGER ACTIONS
// =============================================================================

func TestResolve_ApproveRequiresManager(t *testing.T) {
	doc := docIn(document.DocAdvance, document.StatusPendingApproval)

	to, err := document.Resolve(doc, document.ActionApprove, manager, "")
	assert.NoError(t, err)
	assert.Equal(t, document.StatusApproved, to)

	_, err = document.Resolve(doc, document.ActionApprove, owner, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted, "the requester cannot approve their own document")

	_, err = document.Resolve(doc, document.ActionApprove, accounting, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted)
}

func TestResolve_RejectAndReturnRequireComment(t *testing.T) {
	// GIVEN: A pending document
	// WHEN: A manager rejects or returns without a comment
	// THEN: ErrCommentRequired; with a comment the transition resolves

	doc := docIn(document.DocPayment, document.StatusPendingApproval)

	_, err := document.Resolve(doc, document.ActionReject, manager, "")
	assert.ErrorIs(t, err, document.ErrCommentRequired)

	_, err = document.Resolve(doc, document.ActionReturn, manager, "")
	assert.ErrorIs(t, err, document.ErrCommentRequired)

	to, err := document.Resolve(doc, document.ActionReject, manager, "Wrong cost center")
	assert.NoError(t, err)
	assert.Equal(t, document.StatusRejected, to)

	to, err = document.Resolve(doc, document.ActionReturn, manager, "Please attach the invoice")
	assert.NoError(t, err)
	assert.Equal(t, document.StatusReturned, to)
}

// =============================================================================
// DISBURSE
// =============================================================================

func TestResolve_DisbursePaymentsOnly(t *testing.T) {
	// GIVEN: Approved documents of each type
	// WHEN: Accounting disburses
	// THEN: Only payments can be disbursed

	to, err := document.Resolve(docIn(document.DocPayment, document.StatusApproved), document.ActionDisburse, accounting, "")
	assert.NoError(t, err)
	assert.Equal(t, document.StatusDisbursed, to)

	for _, dt := range []document.DocType{document.DocAdvance, document.DocExpense, document.DocPettyCash} {
		_, err := document.Resolve(docIn(dt, document.StatusApproved), document.ActionDisburse, accounting, "")
		assert.ErrorIs(t, err, document.ErrInvalidTransition, "disburse on %s", dt)
	}
}

func TestResolve_DisburseRequiresAccounting(t *testing.T) {
	_, err := document.Resolve(docIn(document.DocPayment, document.StatusApproved), document.ActionDisburse, manager, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted)
}

// =============================================================================
// TRANSITION CLOSURE
// =============================================================================

func TestResolve_IllegalPairsRejected(t *testing.T) {
	// Anything not in the transition table is an invalid transition,
	// whatever the actor's role.
	cases := []struct {
		status document.Status
		action document.Action
	}{
		{document.StatusDraft, document.ActionApprove},
		{document.StatusDraft, document.ActionReject},
		{document.StatusPendingApproval, document.ActionSubmit},
		{document.StatusPendingApproval, document.ActionDisburse},
		{document.StatusApproved, document.ActionApprove},
		{document.StatusApproved, document.ActionSubmit},
		{document.StatusDisbursed, document.ActionDisburse},
		{document.StatusDisbursed, document.ActionApprove},
		{document.StatusCleared, document.ActionSubmit},
		{document.StatusCleared, document.ActionApprove},
		{document.StatusPosted, document.ActionSubmit},
		{document.StatusPosted, document.ActionReject},
	}
	for _, tc := range cases {
		for _, actor := range []document.Actor{owner, manager, accounting} {
			_, err := document.Resolve(docIn(document.DocPayment, tc.status), tc.action, actor, "a comment")
			assert.ErrorIs(t, err, document.ErrInvalidTransition,
				"%s + %s as %s", tc.status, tc.action, actor.Role)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, document.StatusCleared.Terminal())
	assert.True(t, document.StatusPosted.Terminal())
	// Rejected documents can be resubmitted, so rejected is not terminal.
	assert.False(t, document.StatusRejected.Terminal())
	assert.False(t, document.StatusDisbursed.Terminal())
}

// =============================================================================
// POSTING GUARD
// =============================================================================

func TestCanPost_RoleAndStatus(t *testing.T) {
	approved := docIn(document.DocExpense, document.StatusApproved)

	assert.NoError(t, document.CanPost(approved, accounting))
	assert.ErrorIs(t, document.CanPost(approved, manager), document.ErrNotPermitted)
	assert.ErrorIs(t, document.CanPost(approved, owner), document.ErrNotPermitted)

	pending := docIn(document.DocExpense, document.StatusPendingApproval)
	assert.ErrorIs(t, document.CanPost(pending, accounting), document.ErrNotApproved)
}

func TestCanPost_DisbursedPaymentsStillPostable(t *testing.T) {
	// GIVEN: A payment that was disbursed before posting
	// WHEN: Accounting posts it
	// THEN: Allowed; for every other type disbursed is unreachable anyway

	pay := docIn(document.DocPayment, document.StatusDisbursed)
	assert.NoError(t, document.CanPost(pay, accounting))

	exp := docIn(document.DocExpense, document.StatusDisbursed)
	assert.ErrorIs(t, document.CanPost(exp, accounting), document.ErrNotApproved)
}

func TestPostOutcome_PerType(t *testing.T) {
	assert.Equal(t, document.StatusApproved,
		document.PostOutcome(document.DocAdvance, document.StatusApproved),
		"advances keep their status until reconciliation clears them")
	assert.Equal(t, document.StatusDisbursed,
		document.PostOutcome(document.DocPayment, document.StatusDisbursed),
		"payments keep their status, only the sap number is attached")
	assert.Equal(t, document.StatusPosted,
		document.PostOutcome(document.DocExpense, document.StatusApproved))
	assert.Equal(t, document.StatusPosted,
		document.PostOutcome(document.DocPettyCash, document.StatusApproved))
	assert.Equal(t, document.StatusCleared,
		document.PostOutcome(document.DocReconciliation, document.StatusDraft))
}

// =============================================================================
// DRAFT EDITING
// =============================================================================

func TestCanEditDraft(t *testing.T) {
	for _, status := range []document.Status{document.StatusDraft, document.StatusReturned, document.StatusRejected} {
		assert.NoError(t, document.CanEditDraft(docIn(document.DocAdvance, status), owner), "owner edits %s", status)
	}

	assert.ErrorIs(t,
		document.CanEditDraft(docIn(document.DocAdvance, document.StatusDraft), otherUser),
		document.ErrNotPermitted)

	assert.ErrorIs(t,
		document.CanEditDraft(docIn(document.DocAdvance, document.StatusPendingApproval), owner),
		document.ErrInvalidTransition, "submitted documents are frozen")
}
