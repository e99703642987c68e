/*
Package settlement reconciles advances against actual expenses.

PURPOSE:
  A reconciliation is a derived, accounting-owned view: it is computed
  live from an advance, the approved expenses linked to it, and any
  additional expenses accounting enters while clearing. Expenses that
  have not passed approval never count toward the settlement. There is
  no separate submission or approval flow. A reconciliation record is
  persisted only at clear time: the ledger posting runs first, then the
  record insert and the advance's move to cleared land in one atomic
  store update, so a failed posting leaves nothing behind.

SETTLEMENT SIGN:
  netSettlement = totalExpenses - advanceAmount
    positive  deficit: the company reimburses the employee
    negative  surplus: the employee returns the difference

EXAMPLE:
  advance 5000, expenses 4500 -> netSettlement -500 (return 500)
  advance 5000, expenses 5800 -> netSettlement +800 (reimburse 800)
*/
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/ledger"
)

// =============================================================================
// SETTLEMENT CALCULATION
// =============================================================================

// Compute returns totalExpenses - advanceAmount.
func Compute(advanceAmount, totalExpenses decimal.Decimal) decimal.Decimal {
	return totalExpenses.Sub(advanceAmount)
}

// View is the derived reconciliation of one advance. DocNumber,
// SAPDocNumber, ClearedBy, and ClearedDate are populated once a
// persisted record exists.
type View struct {
	ID                 document.DocumentID `json:"id,omitempty"`
	DocNumber          string              `json:"docNumber,omitempty"`
	AdvanceID          document.DocumentID `json:"advanceId"`
	AdvanceDocNumber   string              `json:"advanceDocNumber"`
	RequesterID        document.UserID     `json:"requesterId"`
	Purpose            string              `json:"purpose,omitempty"`
	Status             document.Status     `json:"status"`
	AdvanceAmount      decimal.Decimal     `json:"advanceAmount"`
	TotalExpenses      decimal.Decimal     `json:"totalExpenses"`
	NetSettlement      decimal.Decimal     `json:"netSettlement"`
	ExpenseIDs         []document.DocumentID `json:"expenseIds,omitempty"`
	AdditionalExpenses []document.LineItem `json:"additionalExpenses,omitempty"`
	SAPDocNumber       string              `json:"sapDocNumber,omitempty"`
	ClearedBy          document.UserID     `json:"clearedBy,omitempty"`
	ClearedDate        time.Time           `json:"clearedDate,omitempty"`
	Note               string              `json:"note,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// Build derives the view for one advance from its linked expenses and
// accounting-entered additional expenses.
func Build(adv *document.Document, expenses []*document.Document, additional []document.LineItem) View {
	total := decimal.Zero
	var expenseIDs []document.DocumentID
	for _, e := range expenses {
		total = total.Add(e.TotalAmount)
		expenseIDs = append(expenseIDs, e.ID)
	}
	for _, li := range additional {
		total = total.Add(li.Amount)
	}

	status := document.StatusApproved
	if adv.Status == document.StatusCleared {
		status = document.StatusCleared
	}

	return View{
		AdvanceID:          adv.ID,
		AdvanceDocNumber:   adv.DocNumber,
		RequesterID:        adv.RequesterID,
		Purpose:            adv.Purpose,
		Status:             status,
		AdvanceAmount:      adv.TotalAmount,
		TotalExpenses:      total,
		NetSettlement:      Compute(adv.TotalAmount, total),
		ExpenseIDs:         expenseIDs,
		AdditionalExpenses: additional,
		CreatedAt:          adv.CreatedAt,
	}
}

// =============================================================================
// SERVICE
// =============================================================================

// Service reconciles and clears advances.
type Service struct {
	docs   *document.Service
	poster *ledger.Poster

	mu       sync.Mutex
	clearing map[document.DocumentID]struct{}
}

func NewService(docs *document.Service, poster *ledger.Poster) *Service {
	return &Service{docs: docs, poster: poster, clearing: make(map[document.DocumentID]struct{})}
}

// Preview derives the reconciliation view for an advance without
// persisting anything.
func (s *Service) Preview(ctx context.Context, advanceID document.DocumentID, additional []document.LineItem) (*View, error) {
	adv, expenses, err := s.load(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	v := Build(adv, expenses, additional)
	return &v, nil
}

// List returns the derived views for every advance that has reached a
// clearable status, merged with the persisted records of already
// cleared reconciliations.
func (s *Service) List(ctx context.Context) ([]View, error) {
	store := s.docs.Store()

	recs, err := store.List(ctx, document.DocReconciliation, document.ListFilter{})
	if err != nil {
		return nil, err
	}
	byAdvance := make(map[document.DocumentID]*document.Document, len(recs))
	for _, r := range recs {
		byAdvance[r.AdvanceID] = r
	}

	advances, err := store.List(ctx, document.DocAdvance, document.ListFilter{})
	if err != nil {
		return nil, err
	}

	var out []View
	for _, adv := range advances {
		switch adv.Status {
		case document.StatusApproved, document.StatusDisbursed, document.StatusCleared:
		default:
			continue
		}
		expenses, err := s.linkedExpenses(ctx, adv.ID)
		if err != nil {
			return nil, err
		}
		if rec := byAdvance[adv.ID]; rec != nil {
			out = append(out, fromRecord(rec, adv, expenses))
			continue
		}
		out = append(out, Build(adv, expenses, nil))
	}
	return out, nil
}

// fromRecord rebuilds the view of a cleared reconciliation from its
// persisted record.
func fromRecord(rec, adv *document.Document, expenses []*document.Document) View {
	v := Build(adv, expenses, rec.LineItems)
	v.ID = rec.ID
	v.DocNumber = rec.DocNumber
	v.Status = rec.Status
	// The persisted totals are authoritative for cleared records.
	v.AdvanceAmount = rec.AdvanceAmount
	v.TotalExpenses = rec.TotalExpenses
	v.NetSettlement = rec.NetSettlement
	v.SAPDocNumber = rec.SAPDocNumber
	v.ClearedBy = rec.ClearedBy
	v.ClearedDate = rec.ClearedDate
	v.Note = rec.Note
	v.CreatedAt = rec.CreatedAt
	return v
}

// Clear reconciles an advance: it posts the reconciliation to the
// ledger, then persists the reconciliation record and moves the advance
// to cleared in one atomic batch. Accounting only.
func (s *Service) Clear(ctx context.Context, advanceID document.DocumentID, actor document.Actor, additional []document.LineItem, note string) (*View, *ledger.Posting, error) {
	if actor.Role != document.RoleAccounting {
		return nil, nil, &document.NotPermittedError{Action: "clear", Role: actor.Role, UserID: actor.ID, Reason: "requires role accounting"}
	}

	// One clear in flight per advance; a rapid double submit gets
	// ErrPostingInFlight instead of clearing twice.
	s.mu.Lock()
	if _, busy := s.clearing[advanceID]; busy {
		s.mu.Unlock()
		return nil, nil, document.ErrPostingInFlight
	}
	s.clearing[advanceID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clearing, advanceID)
		s.mu.Unlock()
	}()

	adv, expenses, err := s.load(ctx, advanceID)
	if err != nil {
		return nil, nil, err
	}

	switch adv.Status {
	case document.StatusApproved, document.StatusDisbursed:
	default:
		return nil, nil, &document.InvalidTransitionError{Type: document.DocAdvance, Status: adv.Status, Action: "clear"}
	}

	for i := range additional {
		if additional[i].Amount.IsNegative() {
			return nil, nil, &document.InvalidAmountError{Field: "amount", Value: additional[i].Amount.InexactFloat64(), Reason: "negative"}
		}
		additional[i].Net = additional[i].Amount
	}

	view := Build(adv, expenses, additional)

	// The reconciliation is a document in its own right so the posting
	// simulator and the audit trail treat it like every other module.
	// It is priced and numbered here but not yet stored: if the posting
	// fails, no record may be left behind.
	rec, err := s.docs.Prepare(ctx, document.DocReconciliation, &document.Document{
		CompanyID:        adv.CompanyID,
		CompanyCode:      adv.CompanyCode,
		Purpose:          adv.Purpose,
		LineItems:        additional,
		AdvanceID:        adv.ID,
		AdvanceDocNumber: adv.DocNumber,
		AdvanceAmount:    view.AdvanceAmount,
		TotalExpenses:    view.TotalExpenses,
		NetSettlement:    view.NetSettlement,
		Note:             note,
	}, actor)
	if err != nil {
		return nil, nil, err
	}

	posting, err := s.poster.Post(ctx, document.DocReconciliation, rec)
	if err != nil {
		return nil, nil, err
	}

	// Reconciliation insert and advance clear land in one atomic batch:
	// both succeed or neither does.
	now := s.docs.Now()
	rec.Status = document.StatusCleared
	rec.SAPDocNumber = posting.DocumentNumber
	rec.ClearedBy = actor.ID
	rec.ClearedDate = now
	rec.UpdatedAt = now
	cleared := document.StatusCleared
	err = s.docs.Store().UpdateBatch(ctx, []document.BatchOp{
		{Add: rec},
		{
			Type:      document.DocAdvance,
			ID:        adv.ID,
			SetStatus: &cleared,
			Mutate:    func(d *document.Document) { d.UpdatedAt = now },
		},
	})
	if err != nil {
		return nil, nil, err
	}

	adv, err = s.docs.Get(ctx, document.DocAdvance, adv.ID)
	if err != nil {
		return nil, nil, err
	}
	out := fromRecord(rec, adv, expenses)
	return &out, posting, nil
}

// load fetches the advance and its countable linked expenses.
func (s *Service) load(ctx context.Context, advanceID document.DocumentID) (*document.Document, []*document.Document, error) {
	adv, err := s.docs.Store().Get(ctx, document.DocAdvance, advanceID)
	if err != nil {
		return nil, nil, err
	}
	if adv == nil {
		return nil, nil, document.ErrNotFound
	}
	expenses, err := s.linkedExpenses(ctx, advanceID)
	if err != nil {
		return nil, nil, err
	}
	return adv, expenses, nil
}

// linkedExpenses returns the expenses charged to an advance that count
// toward the settlement. Only expenses that passed approval count:
// draft, pending, rejected, and returned ones must not move the amount
// being settled.
func (s *Service) linkedExpenses(ctx context.Context, advanceID document.DocumentID) ([]*document.Document, error) {
	all, err := s.docs.Store().List(ctx, document.DocExpense, document.ListFilter{AdvanceID: advanceID})
	if err != nil {
		return nil, err
	}
	var out []*document.Document
	for _, e := range all {
		switch e.Status {
		case document.StatusApproved, document.StatusPosted:
			out = append(out, e)
		}
	}
	return out, nil
}
