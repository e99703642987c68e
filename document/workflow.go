/*
workflow.go - The approval workflow state machine

PURPOSE:
  The single gate for every status change. The transition table below is
  the complete set of legal (status, action) pairs; anything not in the
  table is an InvalidTransition. Stores never validate transitions
  themselves; all mutation flows through Service, which consults this
  table first.

TRANSITIONS:
  draft/returned/rejected  --submit-->    pendingApproval  (owner only)
  pendingApproval          --approve-->   approved         (manager)
  pendingApproval          --reject-->    rejected         (manager, comment)
  pendingApproval          --return-->    returned         (manager, comment)
  approved                 --disburse-->  disbursed        (accounting, payment only)

POSTING:
  Posting to the ledger is not a row in the table because its outcome
  depends on the document type:
    advance         status unchanged (cleared later via reconciliation)
    payment         status unchanged, sapDocNumber attached
    expense         -> posted (terminal)
    pettyCash       -> posted (terminal)
    reconciliation  -> cleared (terminal), linked advance cleared too
  CanPost holds the guard; the outcome lives in PostOutcome.

  The state machine is a deterministic finite automaton: one transition
  per user action, applied synchronously, no intermediate states.
*/
package document

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type transitionKey struct {
	status Status
	action Action
}

type transitionRule struct {
	to              Status
	role            Role // zero value: any role, ownership decides
	ownerOnly       bool
	commentRequired bool
	onlyType        DocType // zero value: all types
}

var transitions = map[transitionKey]transitionRule{
	{StatusDraft, ActionSubmit}:    {to: StatusPendingApproval, ownerOnly: true},
	{StatusReturned, ActionSubmit}: {to: StatusPendingApproval, ownerOnly: true},
	{StatusRejected, ActionSubmit}: {to: StatusPendingApproval, ownerOnly: true},

	{StatusPendingApproval, ActionApprove}: {to: StatusApproved, role: RoleManager},
	{StatusPendingApproval, ActionReject}:  {to: StatusRejected, role: RoleManager, commentRequired: true},
	{StatusPendingApproval, ActionReturn}:  {to: StatusReturned, role: RoleManager, commentRequired: true},

	{StatusApproved, ActionDisburse}: {to: StatusDisbursed, role: RoleAccounting, onlyType: DocPayment},
}

// =============================================================================
// GUARDS
// =============================================================================

// Resolve checks the full rule set for a workflow action and returns the
// target status. The document is not modified.
func Resolve(doc *Document, action Action, actor Actor, comment string) (Status, error) {
	rule, ok := transitions[transitionKey{doc.Status, action}]
	if !ok {
		return "", &InvalidTransitionError{Type: doc.Type, Status: doc.Status, Action: action}
	}
	if rule.onlyType != "" && doc.Type != rule.onlyType {
		return "", &InvalidTransitionError{Type: doc.Type, Status: doc.Status, Action: action}
	}
	if rule.ownerOnly && actor.ID != doc.RequesterID {
		return "", &NotPermittedError{Action: action, Role: actor.Role, UserID: actor.ID, Reason: "only the requester may submit"}
	}
	if rule.role != "" && actor.Role != rule.role {
		return "", &NotPermittedError{Action: action, Role: actor.Role, UserID: actor.ID, Reason: "requires role " + string(rule.role)}
	}
	if rule.commentRequired && comment == "" {
		return "", ErrCommentRequired
	}
	return rule.to, nil
}

// CanPost checks the guard for posting a document to the ledger.
// Duplicate-posting detection is the poster's job; this checks role and
// status only.
func CanPost(doc *Document, actor Actor) error {
	if actor.Role != RoleAccounting {
		return &NotPermittedError{Action: ActionPost, Role: actor.Role, UserID: actor.ID, Reason: "requires role accounting"}
	}
	switch doc.Status {
	case StatusApproved:
		return nil
	case StatusDisbursed:
		if doc.Type == DocPayment {
			return nil
		}
	}
	return ErrNotApproved
}

// PostOutcome returns the status a document holds after a successful
// ledger posting. Advances and payments keep their current status;
// expenses and petty cash reach the terminal posted state;
// reconciliations are cleared.
func PostOutcome(t DocType, current Status) Status {
	switch t {
	case DocExpense, DocPettyCash:
		return StatusPosted
	case DocReconciliation:
		return StatusCleared
	default:
		return current
	}
}

// CanEditDraft reports whether the actor may edit the document's draft
// fields: the owner, while the document is in draft, returned, or
// rejected.
func CanEditDraft(doc *Document, actor Actor) error {
	if actor.ID != doc.RequesterID {
		return &NotPermittedError{Action: "edit", Role: actor.Role, UserID: actor.ID, Reason: "only the requester may edit"}
	}
	switch doc.Status {
	case StatusDraft, StatusReturned, StatusRejected:
		return nil
	}
	return &InvalidTransitionError{Type: doc.Type, Status: doc.Status, Action: "edit"}
}
