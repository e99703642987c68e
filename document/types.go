/*
Package document contains the core financial-request engine.

PURPOSE:
  This package holds the domain types and rules shared by all five
  request modules (advance, payment, expense, petty cash,
  reconciliation): the document shape, the workflow state machine, the
  line-item calculators, and the store contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - DocType: closed enumeration of the five document collections
  - Status / Role / Action: the workflow vocabulary
  - Document: the common record shape across all modules
  - LineItem / Addition: monetary entries with tax and deduction fields
  - Approval: one append-only audit-trail entry

DESIGN PRINCIPLES:
  1. Closed enums: document types are compile-time constants, never
     free-form strings routed by aliasing
  2. Precision: decimal.Decimal for every monetary value and rate
  3. Append-only audit: Approval entries are appended, never edited
  4. One record shape: type-specific fields are optional members of the
     common Document struct, matching the source records

SEE ALSO:
  - workflow.go: which (status, action, role) triples are legal
  - calc.go: per-line net amounts and document totals
  - store.go: the persistence contract
*/
package document

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// DocType identifies one of the five document collections.
type DocType string

const (
	DocAdvance        DocType = "advance"
	DocPayment        DocType = "payment"
	DocExpense        DocType = "expense"
	DocPettyCash      DocType = "pettyCash"
	DocReconciliation DocType = "reconciliation"
)

// AllDocTypes returns every document type in a stable order.
func AllDocTypes() []DocType {
	return []DocType{DocAdvance, DocPayment, DocExpense, DocPettyCash, DocReconciliation}
}

// Valid reports whether t is one of the five known document types.
func (t DocType) Valid() bool {
	switch t {
	case DocAdvance, DocPayment, DocExpense, DocPettyCash, DocReconciliation:
		return true
	}
	return false
}

// Prefix returns the document-number prefix for the type (e.g. "ADV").
func (t DocType) Prefix() string {
	switch t {
	case DocAdvance:
		return "ADV"
	case DocPayment:
		return "PAY"
	case DocExpense:
		return "EXP"
	case DocPettyCash:
		return "PC"
	case DocReconciliation:
		return "REC"
	}
	return "DOC"
}

// =============================================================================
// WORKFLOW VOCABULARY
// =============================================================================

// Status is the single field governing which actions are legal.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pendingApproval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusReturned        Status = "returned"
	StatusDisbursed       Status = "disbursed"
	StatusCleared         Status = "cleared"
	StatusPosted          Status = "posted"
)

// Terminal reports whether no further transition leaves s.
// Rejected documents can be resubmitted by their owner, so rejected is
// not terminal.
func (s Status) Terminal() bool {
	return s == StatusCleared || s == StatusPosted
}

// Role is the acting user's current role. Role switching is a local
// toggle in the UI, not authentication.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleAccounting Role = "accounting"
)

// Action is a workflow action applied to a document.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionReturn   Action = "return"
	ActionDisburse Action = "disburse"
	ActionPost     Action = "post"
)

// auditLabel is the past-tense form recorded in the approval trail,
// matching the labels the source records carry.
func (a Action) auditLabel() string {
	switch a {
	case ActionSubmit:
		return "submitted"
	case ActionApprove:
		return "approved"
	case ActionReject:
		return "rejected"
	case ActionReturn:
		return "returned"
	case ActionDisburse:
		return "disbursed"
	case ActionPost:
		return "posted"
	}
	return string(a)
}

// =============================================================================
// IDENTIFIERS AND ACTORS
// =============================================================================

type DocumentID string
type UserID string

// Actor is the user performing an operation, with their active role.
type Actor struct {
	ID   UserID
	Role Role
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// AdditionType classifies a payment-line addition or deduction.
type AdditionType string

const (
	AdditionVAT       AdditionType = "vat"
	AdditionWHT       AdditionType = "wht"
	AdditionRetention AdditionType = "retention"
)

// Addition is a tax or deduction attached to a payment line. Amount is
// computed from the line's base amount and cached here, per the source
// behavior (recomputed whenever the base or rate changes).
type Addition struct {
	Type   AdditionType    `json:"type"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// LineItem is one monetary entry of a document. Which fields are
// meaningful depends on the document type: advances carry VAT/WHT rates,
// payments carry additions and a cost center, expenses carry an expense
// type. Net is the cached per-line net contribution.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`

	// Advance lines
	VATRate decimal.Decimal `json:"vatRate,omitempty"`
	WHTRate decimal.Decimal `json:"whtRate,omitempty"`

	// Payment lines
	CostCenter string     `json:"wbsCostCenter,omitempty"`
	Additions  []Addition `json:"additions,omitempty"`

	// Expense and petty-cash lines
	ExpenseType string `json:"expenseType,omitempty"`
	GLAccount   string `json:"glAccount,omitempty"`

	Net decimal.Decimal `json:"netAmount"`
}

// =============================================================================
// APPROVAL TRAIL
// =============================================================================

// Approval is one audit-trail entry. Entries are append-only: they are
// never edited, removed, or reordered.
type Approval struct {
	UserID  UserID    `json:"userId"`
	Action  string    `json:"action"`
	Date    time.Time `json:"date"`
	Comment string    `json:"comment"`
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is the common record shape across all five modules.
// ID and DocNumber are assigned exactly once at creation and never
// regenerated. Type-specific fields are populated per module and left
// zero elsewhere, matching the source records.
type Document struct {
	ID          DocumentID `json:"id"`
	Type        DocType    `json:"type"`
	DocNumber   string     `json:"docNumber"`
	RequesterID UserID     `json:"requesterId"`
	Status      Status     `json:"status"`

	CompanyID   string `json:"companyId,omitempty"`
	CompanyCode string `json:"companyCode,omitempty"`
	Department  string `json:"department,omitempty"`
	Purpose     string `json:"purpose,omitempty"`

	LineItems []LineItem `json:"lineItems,omitempty"`
	Approvals []Approval `json:"approvals"`

	// Derived monetary total, recomputed whenever line items change.
	TotalAmount decimal.Decimal `json:"totalAmount"`

	// Payment details
	Payee         string `json:"payee,omitempty"`
	VendorID      string `json:"vendorId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	BankID        string `json:"bankId,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Memo          string `json:"memo,omitempty"`

	// Expense linkage: set when the expense draws on an advance.
	AdvanceID DocumentID `json:"advanceId,omitempty"`

	// Reconciliation settlement fields
	AdvanceDocNumber string          `json:"advanceDocNumber,omitempty"`
	AdvanceAmount    decimal.Decimal `json:"advanceAmount,omitempty"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses,omitempty"`
	NetSettlement    decimal.Decimal `json:"netSettlement,omitempty"`
	ClearedBy        UserID          `json:"clearedBy,omitempty"`
	ClearedDate      time.Time       `json:"clearedDate,omitempty"`

	// Attached once the document is posted to the simulated ledger.
	SAPDocNumber string `json:"sapDocNumber,omitempty"`

	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate held records behind the store's back.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.LineItems = make([]LineItem, len(d.LineItems))
	for i, li := range d.LineItems {
		out.LineItems[i] = li
		if li.Additions != nil {
			out.LineItems[i].Additions = append([]Addition(nil), li.Additions...)
		}
	}
	out.Approvals = append([]Approval(nil), d.Approvals...)
	return &out
}
