package settlement_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/document/store"
	"github.com/meridian/finrequest/ledger"
	"github.com/meridian/finrequest/settlement"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	testNow = time.Date(2026, time.May, 10, 14, 0, 0, 0, time.UTC)

	owner      = document.Actor{ID: "emp-1", Role: document.RoleEmployee}
	manager    = document.Actor{ID: "mgr-1", Role: document.RoleManager}
	accounting = document.Actor{ID: "acct-1", Role: document.RoleAccounting}
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	docs   *document.Service
	settle *settlement.Service
}

func newFixture(t *testing.T) fixture {
	return newFixtureWithSleeper(t, ledger.NoSleep)
}

func newFixtureWithSleeper(t *testing.T, sleep ledger.Sleeper) fixture {
	t.Helper()
	ids := 0
	docs := document.NewService(
		store.NewMemory(),
		document.NewMemorySequence(),
		document.WithClock(func() time.Time { return testNow }),
		document.WithIDGenerator(func() document.DocumentID {
			ids++
			return document.DocumentID(fmt.Sprintf("id-%d", ids))
		}),
	)
	poster := ledger.NewPoster(
		ledger.NewMemorySequence(ledger.SequenceSeed),
		ledger.NewMemoryLog(),
		ledger.WithSleeper(sleep),
		ledger.WithClock(func() time.Time { return testNow }),
	)
	return fixture{docs: docs, settle: settlement.NewService(docs, poster)}
}

// approvedAdvance creates and approves an advance for the given amount.
func (f fixture) approvedAdvance(t *testing.T, amount string) *document.Document {
	t.Helper()
	ctx := context.Background()
	adv, err := f.docs.Create(ctx, document.DocAdvance, &document.Document{
		CompanyID: "comp-1",
		Purpose:   "Field survey",
		LineItems: []document.LineItem{{Description: "Travel", Amount: dec(amount)}},
	}, false, owner)
	require.NoError(t, err)
	adv, err = f.docs.Transition(ctx, document.DocAdvance, adv.ID, document.ActionApprove, manager, "")
	require.NoError(t, err)
	return adv
}

// linkedExpense creates and approves an expense charged to the advance.
func (f fixture) linkedExpense(t *testing.T, advanceID document.DocumentID, amount string) *document.Document {
	t.Helper()
	ctx := context.Background()
	exp, err := f.docs.Create(ctx, document.DocExpense, &document.Document{
		AdvanceID: advanceID,
		LineItems: []document.LineItem{{Description: "Hotel", Amount: dec(amount)}},
	}, false, owner)
	require.NoError(t, err)
	exp, err = f.docs.Transition(ctx, document.DocExpense, exp.ID, document.ActionApprove, manager, "")
	require.NoError(t, err)
	return exp
}

// =============================================================================
// SETTLEMENT ARITHMETIC
// =============================================================================

func TestCompute_Signs(t *testing.T) {
	// advance 5000, spent 4500: the employee returns 500
	assert.True(t, settlement.Compute(dec("5000"), dec("4500")).Equal(dec("-500")))

	// advance 5000, spent 5800: the company reimburses 800
	assert.True(t, settlement.Compute(dec("5000"), dec("5800")).Equal(dec("800")))

	assert.True(t, settlement.Compute(dec("5000"), dec("5000")).IsZero())
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_DerivesTotals(t *testing.T) {
	// GIVEN: An approved advance of 5000 with linked expenses of 3000 and
	//        1500, plus an additional expense of 300 entered at review
	// WHEN: Previewing the reconciliation
	// THEN: totalExpenses is 4800 and netSettlement is -200

	f := newFixture(t)
	adv := f.approvedAdvance(t, "5000")
	e1 := f.linkedExpense(t, adv.ID, "3000")
	e2 := f.linkedExpense(t, adv.ID, "1500")

	view, err := f.settle.Preview(context.Background(), adv.ID, []document.LineItem{
		{Description: "Taxi", Amount: dec("300")},
	})
	require.NoError(t, err)

	assert.Equal(t, adv.DocNumber, view.AdvanceDocNumber)
	assert.Equal(t, document.StatusApproved, view.Status)
	assert.True(t, view.AdvanceAmount.Equal(dec("5000")))
	assert.True(t, view.TotalExpenses.Equal(dec("4800")))
	assert.True(t, view.NetSettlement.Equal(dec("-200")))
	assert.ElementsMatch(t, []document.DocumentID{e1.ID, e2.ID}, view.ExpenseIDs)
	assert.Empty(t, view.DocNumber, "a preview persists nothing")
}

func TestSettlement_CountsOnlyApprovedExpenses(t *testing.T) {
	// GIVEN: An approved advance of 5000 with one approved expense of
	//        4500, one rejected expense, and one draft expense
	// WHEN: Deriving the settlement
	// THEN: Only the approved expense counts; the others must not move
	//       the amount being settled

	f := newFixture(t)
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	approved := f.linkedExpense(t, adv.ID, "4500")

	rejected, err := f.docs.Create(ctx, document.DocExpense, &document.Document{
		AdvanceID: adv.ID,
		LineItems: []document.LineItem{{Description: "Minibar", Amount: dec("900")}},
	}, false, owner)
	require.NoError(t, err)
	_, err = f.docs.Transition(ctx, document.DocExpense, rejected.ID, document.ActionReject, manager, "Not reimbursable")
	require.NoError(t, err)

	_, err = f.docs.Create(ctx, document.DocExpense, &document.Document{
		AdvanceID: adv.ID,
		LineItems: []document.LineItem{{Description: "Pending receipt", Amount: dec("250")}},
	}, true, owner)
	require.NoError(t, err)

	view, err := f.settle.Preview(ctx, adv.ID, nil)
	require.NoError(t, err)

	assert.True(t, view.TotalExpenses.Equal(dec("4500")))
	assert.True(t, view.NetSettlement.Equal(dec("-500")))
	assert.Equal(t, []document.DocumentID{approved.ID}, view.ExpenseIDs)
}

func TestPreview_MissingAdvance(t *testing.T) {
	f := newFixture(t)

	_, err := f.settle.Preview(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, document.ErrNotFound)
}

// =============================================================================
// CLEAR
// =============================================================================

func TestClear_PersistsRecordAndClearsAdvance(t *testing.T) {
	// GIVEN: An approved advance of 5000 with 4500 of linked expenses
	// WHEN: Accounting clears it
	// THEN: A cleared reconciliation record exists with a ledger number,
	//       and the advance itself moves to cleared

	f := newFixture(t)
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, adv.ID, "4500")

	view, posting, err := f.settle.Clear(ctx, adv.ID, accounting, nil, "month end")
	require.NoError(t, err)

	assert.Equal(t, "REC-2026-0001", view.DocNumber)
	assert.Equal(t, document.StatusCleared, view.Status)
	assert.True(t, view.NetSettlement.Equal(dec("-500")))
	assert.Equal(t, accounting.ID, view.ClearedBy)
	assert.Equal(t, testNow, view.ClearedDate)
	assert.Equal(t, "month end", view.Note)
	assert.Equal(t, posting.DocumentNumber, view.SAPDocNumber)
	assert.Equal(t, "209000001", posting.DocumentNumber)
	assert.Equal(t, document.DocReconciliation, posting.SourceModule)

	after, err := f.docs.Get(ctx, document.DocAdvance, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusCleared, after.Status)
}

func TestClear_AdditionalExpensesCountTowardTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, adv.ID, "5500")

	view, _, err := f.settle.Clear(ctx, adv.ID, accounting, []document.LineItem{
		{Description: "Parking", Amount: dec("300")},
	}, "")
	require.NoError(t, err)

	assert.True(t, view.TotalExpenses.Equal(dec("5800")))
	assert.True(t, view.NetSettlement.Equal(dec("800")), "deficit: the company reimburses")
}

func TestClear_RequiresAccounting(t *testing.T) {
	f := newFixture(t)
	adv := f.approvedAdvance(t, "5000")

	_, _, err := f.settle.Clear(context.Background(), adv.ID, manager, nil, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted)

	_, _, err = f.settle.Clear(context.Background(), adv.ID, owner, nil, "")
	assert.ErrorIs(t, err, document.ErrNotPermitted)
}

func TestClear_WrongAdvanceStatus(t *testing.T) {
	// A pending advance cannot be cleared.
	f := newFixture(t)
	ctx := context.Background()

	adv, err := f.docs.Create(ctx, document.DocAdvance, &document.Document{
		LineItems: []document.LineItem{{Amount: dec("5000")}},
	}, false, owner)
	require.NoError(t, err)

	_, _, err = f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	assert.ErrorIs(t, err, document.ErrInvalidTransition)
}

func TestClear_SecondClearRefused(t *testing.T) {
	// GIVEN: An advance already cleared
	// WHEN: Clearing again
	// THEN: The advance is terminal, so the clear is an invalid transition

	f := newFixture(t)
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, adv.ID, "4500")

	_, _, err := f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	require.NoError(t, err)

	_, _, err = f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	assert.ErrorIs(t, err, document.ErrInvalidTransition)
}

func TestClear_FailedPostingLeavesNothingBehind(t *testing.T) {
	// GIVEN: An approved advance whose ledger posting fails mid-clear
	// WHEN: Accounting attempts the clear
	// THEN: The error surfaces, no reconciliation record exists, the
	//       advance keeps its status, and it remains reconcilable

	postingErr := errors.New("ledger unavailable")
	f := newFixtureWithSleeper(t, func(context.Context, time.Duration) error { return postingErr })
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, adv.ID, "4500")

	_, _, err := f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	require.ErrorIs(t, err, postingErr)

	recs, err := f.docs.List(ctx, document.DocReconciliation, document.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs, "a failed clear must leave no reconciliation record behind")

	after, err := f.docs.Get(ctx, document.DocAdvance, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusApproved, after.Status)

	views, err := f.settle.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, document.StatusApproved, views[0].Status)
	assert.Empty(t, views[0].DocNumber)
}

func TestClear_FailedPostingAllowsRetry(t *testing.T) {
	// After a failed clear the advance is still clearable.
	failures := 1
	f := newFixtureWithSleeper(t, func(context.Context, time.Duration) error {
		if failures > 0 {
			failures--
			return errors.New("ledger unavailable")
		}
		return nil
	})
	ctx := context.Background()
	adv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, adv.ID, "4500")

	_, _, err := f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	require.Error(t, err)

	view, posting, err := f.settle.Clear(ctx, adv.ID, accounting, nil, "")
	require.NoError(t, err)
	assert.Equal(t, document.StatusCleared, view.Status)
	assert.Equal(t, "209000001", posting.DocumentNumber,
		"a refused posting consumes no ledger number")
}

func TestClear_NegativeAdditionalRejected(t *testing.T) {
	f := newFixture(t)
	adv := f.approvedAdvance(t, "5000")

	_, _, err := f.settle.Clear(context.Background(), adv.ID, accounting, []document.LineItem{
		{Description: "Refund", Amount: dec("-50")},
	}, "")
	assert.ErrorIs(t, err, document.ErrInvalidAmount)
}

// =============================================================================
// LIST
// =============================================================================

func TestList_MergesDerivedAndCleared(t *testing.T) {
	// GIVEN: One cleared advance, one approved advance, and one still
	//        pending
	// WHEN: Listing reconciliations
	// THEN: The pending advance is absent; the cleared one carries its
	//       persisted record, the approved one is a live derivation

	f := newFixture(t)
	ctx := context.Background()

	clearedAdv := f.approvedAdvance(t, "5000")
	f.linkedExpense(t, clearedAdv.ID, "4500")
	_, _, err := f.settle.Clear(ctx, clearedAdv.ID, accounting, nil, "")
	require.NoError(t, err)

	openAdv := f.approvedAdvance(t, "2000")
	f.linkedExpense(t, openAdv.ID, "900")

	_, err = f.docs.Create(ctx, document.DocAdvance, &document.Document{
		LineItems: []document.LineItem{{Amount: dec("700")}},
	}, false, owner)
	require.NoError(t, err)

	views, err := f.settle.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byAdvance := map[document.DocumentID]settlement.View{}
	for _, v := range views {
		byAdvance[v.AdvanceID] = v
	}

	cleared := byAdvance[clearedAdv.ID]
	assert.Equal(t, document.StatusCleared, cleared.Status)
	assert.Equal(t, "REC-2026-0001", cleared.DocNumber)
	assert.NotEmpty(t, cleared.SAPDocNumber)

	open := byAdvance[openAdv.ID]
	assert.Equal(t, document.StatusApproved, open.Status)
	assert.Empty(t, open.DocNumber)
	assert.True(t, open.NetSettlement.Equal(dec("-1100")))
}
