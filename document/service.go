/*
service.go - Document lifecycle orchestration

PURPOSE:
  The one write path into the store. Creation assigns identity and
  numbering, transitions consult the workflow table, and draft edits are
  restricted to the owner. Handlers never call Store mutation directly.

LIFECYCLE:
  Create (draft | submitted) -> submit -> manager approve/reject/return
  -> accounting disburse (payment) / post -> cleared via reconciliation
  (advance). Documents are never deleted, only moved to terminal states.

INJECTION:
  Clock and ID generation are injectable so tests are deterministic.
  The document-number Sequence is injected the same way.
*/
package document

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates the document lifecycle over a Store.
type Service struct {
	store Store
	seq   Sequence
	now   func() time.Time
	newID func() DocumentID
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides document ID generation.
func WithIDGenerator(gen func() DocumentID) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store Store, seq Sequence, opts ...Option) *Service {
	s := &Service{
		store: store,
		seq:   seq,
		now:   time.Now,
		newID: func() DocumentID { return DocumentID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read-side collaborators.
func (s *Service) Store() Store { return s.store }

// Now exposes the service clock.
func (s *Service) Now() time.Time { return s.now() }

// =============================================================================
// CREATION
// =============================================================================

// Create assigns identity, validates and prices the line items, and
// inserts the document as draft or pendingApproval. Submitting (asDraft
// false) appends the first audit entry.
func (s *Service) Create(ctx context.Context, t DocType, draft *Document, asDraft bool, actor Actor) (*Document, error) {
	doc, err := s.Prepare(ctx, t, draft, actor)
	if err != nil {
		return nil, err
	}

	if !asDraft {
		doc.Status = StatusPendingApproval
		doc.Approvals = []Approval{{UserID: actor.ID, Action: ActionSubmit.auditLabel(), Date: doc.CreatedAt}}
	}

	if err := s.store.Add(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// Prepare prices, numbers, and stamps a new draft document without
// storing it. Callers that must persist the record atomically with
// other writes insert the result through a BatchOp.Add; everyone else
// goes through Create.
func (s *Service) Prepare(ctx context.Context, t DocType, draft *Document, actor Actor) (*Document, error) {
	if !t.Valid() {
		return nil, &InvalidTransitionError{Type: t, Status: "", Action: "create"}
	}
	doc := draft.Clone()
	doc.Type = t
	if err := s.priceLines(t, doc); err != nil {
		return nil, err
	}

	now := s.now()
	doc.ID = s.newID()
	n, err := s.seq.Next(ctx, t, now.Year())
	if err != nil {
		return nil, err
	}
	doc.DocNumber = FormatDocNumber(t, now.Year(), n)
	doc.RequesterID = actor.ID
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Approvals = nil
	doc.SAPDocNumber = ""
	doc.Status = StatusDraft
	return doc, nil
}

// priceLines validates amounts and rates, refreshes cached addition
// amounts, and recomputes per-line nets and the document total.
func (s *Service) priceLines(t DocType, doc *Document) error {
	for i := range doc.LineItems {
		li := &doc.LineItems[i]
		if li.Amount.IsNegative() {
			return &InvalidAmountError{Field: "amount", Value: li.Amount.InexactFloat64(), Reason: "negative"}
		}
		switch t {
		case DocAdvance:
			if err := ValidateAdvanceRates(*li); err != nil {
				return err
			}
		case DocPayment:
			RefreshAdditions(li)
		}
		li.Net = LineNet(t, *li)
	}
	doc.TotalAmount = ComputeTotals(t, doc.LineItems).TotalAmount
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition applies a workflow action. The status change and the audit
// entry land in one atomic batch; on any guard failure the document is
// left untouched.
func (s *Service) Transition(ctx context.Context, t DocType, id DocumentID, action Action, actor Actor, comment string) (*Document, error) {
	doc, err := s.store.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	to, err := Resolve(doc, action, actor, comment)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := Approval{
		UserID:  actor.ID,
		Action:  action.auditLabel(),
		Date:    now,
		Comment: defaultComment(action, doc.Status, comment),
	}
	status := to
	err = s.store.UpdateBatch(ctx, []BatchOp{{
		Type:      t,
		ID:        id,
		SetStatus: &status,
		Approval:  &entry,
		Mutate:    func(d *Document) { d.UpdatedAt = now },
	}})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, t, id)
}

// defaultComment fills the audit comment the way the source did when
// the user supplied none.
func defaultComment(action Action, from Status, comment string) string {
	if comment != "" {
		return comment
	}
	switch action {
	case ActionApprove:
		return "Approved"
	case ActionDisburse:
		return "Disbursed"
	case ActionSubmit:
		if from == StatusReturned || from == StatusRejected {
			return "Resubmitted"
		}
	}
	return ""
}

// =============================================================================
// DRAFT EDITS
// =============================================================================

// UpdateDraft lets the owner edit a draft, returned, or rejected
// document. apply sets the editable fields; line items are revalidated
// and totals recomputed afterwards. The document number is never
// regenerated.
func (s *Service) UpdateDraft(ctx context.Context, t DocType, id DocumentID, actor Actor, apply func(*Document)) (*Document, error) {
	doc, err := s.store.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	if err := CanEditDraft(doc, actor); err != nil {
		return nil, err
	}

	staged := doc.Clone()
	apply(staged)
	if err := s.priceLines(t, staged); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.Update(ctx, t, id, func(d *Document) {
		*d = *staged
		d.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, t, id)
}

// =============================================================================
// POSTING BOOKKEEPING
// =============================================================================

// MarkPosted records the outcome of a successful ledger posting: the
// generated document number is attached and the status moves per the
// per-type outcome table. Guard checks happen before posting, via
// CanPost.
func (s *Service) MarkPosted(ctx context.Context, t DocType, id DocumentID, sapDocNumber string) (*Document, error) {
	doc, err := s.store.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	status := PostOutcome(t, doc.Status)
	err = s.store.UpdateBatch(ctx, []BatchOp{{
		Type:      t,
		ID:        id,
		SetStatus: &status,
		Mutate: func(d *Document) {
			d.SAPDocNumber = sapDocNumber
			d.UpdatedAt = now
		},
	}})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, t, id)
}

// =============================================================================
// READS AND TOTALS
// =============================================================================

// Get returns the document or (nil, nil) when missing.
func (s *Service) Get(ctx context.Context, t DocType, id DocumentID) (*Document, error) {
	return s.store.Get(ctx, t, id)
}

// List returns matching documents in insertion order.
func (s *Service) List(ctx context.Context, t DocType, f ListFilter) ([]*Document, error) {
	return s.store.List(ctx, t, f)
}

// PreviewTotals validates and prices line items without touching the
// store. Forms call this for live preview.
func (s *Service) PreviewTotals(t DocType, items []LineItem) (Totals, error) {
	staged := (&Document{LineItems: items}).Clone()
	if err := s.priceLines(t, staged); err != nil {
		return Totals{}, err
	}
	return ComputeTotals(t, staged.LineItems), nil
}

// PendingApprovals returns every document awaiting approval across the
// four request modules, in collection order. Reconciliations are
// excluded: they have no approval flow.
func (s *Service) PendingApprovals(ctx context.Context) ([]*Document, error) {
	var out []*Document
	for _, t := range AllDocTypes() {
		if t == DocReconciliation {
			continue
		}
		docs, err := s.store.List(ctx, t, ListFilter{Status: StatusPendingApproval})
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// PendingApprovalCount counts the documents PendingApprovals returns.
func (s *Service) PendingApprovalCount(ctx context.Context) (int, error) {
	docs, err := s.PendingApprovals(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
