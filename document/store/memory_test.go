package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/document/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func record(t document.DocType, id string) *document.Document {
	return &document.Document{
		ID:          document.DocumentID(id),
		Type:        t,
		DocNumber:   "ADV-2026-0001",
		Status:      document.StatusDraft,
		RequesterID: "emp-1",
		CreatedAt:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		LineItems: []document.LineItem{
			{Description: "Travel", Amount: decimal.NewFromInt(1000)},
		},
	}
}

// =============================================================================
// ADD / GET
// =============================================================================

func TestAdd_RejectsDuplicateID(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	err := m.Add(ctx, record(document.DocAdvance, "a1"))
	assert.ErrorIs(t, err, document.ErrDuplicateID)
}

func TestAdd_SameIDAcrossTypes(t *testing.T) {
	// Collections are scoped per type, so the same ID can exist in two of
	// them.
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))
	require.NoError(t, m.Add(ctx, record(document.DocExpense, "a1")))
}

func TestGet_MissingReturnsNilNil(t *testing.T) {
	m := store.NewMemory()

	doc, err := m.Get(context.Background(), document.DocAdvance, "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGet_ReturnsCopy(t *testing.T) {
	// GIVEN: A stored advance
	// WHEN: Mutating the document returned by Get
	// THEN: The stored record is unaffected

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	got.Purpose = "tampered"
	got.LineItems[0].Description = "tampered"

	again, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Empty(t, again.Purpose)
	assert.Equal(t, "Travel", again.LineItems[0].Description)
}

// =============================================================================
// LIST
// =============================================================================

func TestList_InsertionOrderAndFilters(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	a := record(document.DocAdvance, "a1")
	b := record(document.DocAdvance, "a2")
	b.Status = document.StatusPendingApproval
	b.RequesterID = "emp-2"
	c := record(document.DocAdvance, "a3")
	require.NoError(t, m.Add(ctx, a))
	require.NoError(t, m.Add(ctx, b))
	require.NoError(t, m.Add(ctx, c))

	all, err := m.List(ctx, document.DocAdvance, document.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, document.DocumentID("a1"), all[0].ID)
	assert.Equal(t, document.DocumentID("a3"), all[2].ID)

	pending, err := m.List(ctx, document.DocAdvance, document.ListFilter{Status: document.StatusPendingApproval})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, document.DocumentID("a2"), pending[0].ID)

	mine, err := m.List(ctx, document.DocAdvance, document.ListFilter{RequesterID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestList_FilterByAdvanceID(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	e1 := record(document.DocExpense, "e1")
	e1.AdvanceID = "a1"
	e2 := record(document.DocExpense, "e2")
	require.NoError(t, m.Add(ctx, e1))
	require.NoError(t, m.Add(ctx, e2))

	linked, err := m.List(ctx, document.DocExpense, document.ListFilter{AdvanceID: "a1"})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, document.DocumentID("e1"), linked[0].ID)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_PreservesIdentityAndAudit(t *testing.T) {
	// GIVEN: A stored advance with one audit entry
	// WHEN: A mutate function rewrites every protected field
	// THEN: ID, type, number, creation time, and the trail survive while
	//       the ordinary fields change

	m := store.NewMemory()
	ctx := context.Background()
	doc := record(document.DocAdvance, "a1")
	require.NoError(t, m.Add(ctx, doc))
	require.NoError(t, m.AppendApproval(ctx, document.DocAdvance, "a1", document.Approval{
		UserID: "emp-1", Action: "submitted",
	}))

	err := m.Update(ctx, document.DocAdvance, "a1", func(d *document.Document) {
		d.ID = "forged"
		d.Type = document.DocPayment
		d.DocNumber = "PAY-2026-9999"
		d.CreatedAt = time.Time{}
		d.Approvals = nil
		d.Purpose = "Conference travel"
	})
	require.NoError(t, err)

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Equal(t, document.DocumentID("a1"), got.ID)
	assert.Equal(t, document.DocAdvance, got.Type)
	assert.Equal(t, "ADV-2026-0001", got.DocNumber)
	assert.Equal(t, doc.CreatedAt, got.CreatedAt)
	assert.Len(t, got.Approvals, 1)
	assert.Equal(t, "Conference travel", got.Purpose)
}

func TestUpdate_MissingReturnsNotFound(t *testing.T) {
	m := store.NewMemory()

	err := m.Update(context.Background(), document.DocAdvance, "nope", func(d *document.Document) {})
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	require.NoError(t, m.SetStatus(ctx, document.DocAdvance, "a1", document.StatusApproved))

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusApproved, got.Status)
}

// =============================================================================
// APPROVALS
// =============================================================================

func TestAppendApproval_Appends(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	require.NoError(t, m.AppendApproval(ctx, document.DocAdvance, "a1", document.Approval{Action: "submitted"}))
	require.NoError(t, m.AppendApproval(ctx, document.DocAdvance, "a1", document.Approval{Action: "approved"}))

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	require.Len(t, got.Approvals, 2)
	assert.Equal(t, "submitted", got.Approvals[0].Action)
	assert.Equal(t, "approved", got.Approvals[1].Action)
}

// =============================================================================
// BATCH
// =============================================================================

func TestUpdateBatch_Atomic(t *testing.T) {
	// GIVEN: One valid target and one missing target in the same batch
	// WHEN: Applying the batch
	// THEN: The batch fails and the valid target is left unchanged

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	approved := document.StatusApproved
	err := m.UpdateBatch(ctx, []document.BatchOp{
		{Type: document.DocAdvance, ID: "a1", SetStatus: &approved},
		{Type: document.DocAdvance, ID: "missing", SetStatus: &approved},
	})
	assert.ErrorIs(t, err, document.ErrNotFound)

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, got.Status)
}

func TestUpdateBatch_StatusApprovalAndMutateTogether(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	cleared := document.StatusCleared
	entry := document.Approval{UserID: "acct-1", Action: "cleared"}
	err := m.UpdateBatch(ctx, []document.BatchOp{{
		Type:      document.DocAdvance,
		ID:        "a1",
		SetStatus: &cleared,
		Approval:  &entry,
		Mutate:    func(d *document.Document) { d.SAPDocNumber = "209000001" },
	}})
	require.NoError(t, err)

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusCleared, got.Status)
	assert.Equal(t, "209000001", got.SAPDocNumber)
	require.Len(t, got.Approvals, 1)
	assert.Equal(t, "cleared", got.Approvals[0].Action)
}

func TestUpdateBatch_DuplicateAddsInOneBatch(t *testing.T) {
	// GIVEN: A batch carrying two Adds with the same ID
	// WHEN: Applying it
	// THEN: Verification catches the collision before any write lands

	m := store.NewMemory()
	ctx := context.Background()

	err := m.UpdateBatch(ctx, []document.BatchOp{
		{Add: record(document.DocAdvance, "a1")},
		{Add: record(document.DocAdvance, "a1")},
	})
	assert.ErrorIs(t, err, document.ErrDuplicateID)

	got, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Nil(t, got, "the first Add must not survive a failed batch")
}

func TestUpdateBatch_AddAndUpdateInOneBatch(t *testing.T) {
	// The reconciliation clear inserts the new record and flips the
	// advance in one batch.
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, record(document.DocAdvance, "a1")))

	rec := record(document.DocReconciliation, "r1")
	rec.AdvanceID = "a1"
	cleared := document.StatusCleared
	err := m.UpdateBatch(ctx, []document.BatchOp{
		{Add: rec},
		{Type: document.DocAdvance, ID: "a1", SetStatus: &cleared},
	})
	require.NoError(t, err)

	gotRec, err := m.Get(ctx, document.DocReconciliation, "r1")
	require.NoError(t, err)
	require.NotNil(t, gotRec)

	gotAdv, err := m.Get(ctx, document.DocAdvance, "a1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusCleared, gotAdv.Status)
}
