/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the engine with realistic
	data for testing and demos. Each scenario creates documents through
	the normal service paths, so numbering, pricing, and the approval
	trail come out exactly as they would through the forms.

AVAILABLE SCENARIOS:

	approval-queue:        Submitted requests across all four modules,
	                       for the manager dashboard
	reconciliation-ready:  Approved advance with linked approved
	                       expenses, ready for accounting to clear
	month-end:             Mixed statuses across the whole lifecycle

HOW SCENARIOS WORK:
 1. Documents are created via the document service (never direct store
    writes), as the employee actor
 2. Workflow actions are applied via Transition as manager/accounting
 3. No ledger postings are made; posting stays a user action

LOADING RULES:

	Scenarios seed on top of an empty engine. Loading refuses when any
	documents already exist; restart the server to switch scenarios.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "reconciliation-ready"}

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - document/service.go: Create and Transition paths used here
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/meridian/finrequest/document"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "approval-queue",
		Name:        "Approval Queue",
		Description: "Submitted requests across all four modules awaiting manager action",
	},
	{
		ID:          "reconciliation-ready",
		Name:        "Reconciliation Ready",
		Description: "Approved advance with linked approved expenses, ready to clear",
	},
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "Mixed statuses across the whole request lifecycle",
	},
}

// Demo actors used by every scenario.
var (
	demoEmployee   = document.Actor{ID: "emp-001", Role: document.RoleEmployee}
	demoEmployee2  = document.Actor{ID: "emp-002", Role: document.RoleEmployee}
	demoManager    = document.Actor{ID: "mgr-001", Role: document.RoleManager}
	demoAccounting = document.Actor{ID: "acct-001", Role: document.RoleAccounting}
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario into an empty engine.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()

	empty, err := h.engineEmpty(ctx)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if !empty {
		writeError(w, http.StatusConflict,
			"Engine already holds documents; restart the server to load a different scenario", nil)
		return
	}

	switch req.ScenarioID {
	case "approval-queue":
		err = h.loadApprovalQueueScenario(ctx)
	case "reconciliation-ready":
		err = h.loadReconciliationReadyScenario(ctx)
	case "month-end":
		err = h.loadMonthEndScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// SeedScenario loads a scenario outside the HTTP path, for startup
// seeding via configuration. Same rules as LoadScenario: the engine
// must be empty and the ID must be known.
func (h *Handler) SeedScenario(ctx context.Context, id string) error {
	empty, err := h.engineEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("engine already holds documents")
	}

	switch id {
	case "approval-queue":
		err = h.loadApprovalQueueScenario(ctx)
	case "reconciliation-ready":
		err = h.loadReconciliationReadyScenario(ctx)
	case "month-end":
		err = h.loadMonthEndScenario(ctx)
	default:
		return fmt.Errorf("unknown scenario %q", id)
	}
	if err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

func (h *Handler) engineEmpty(ctx context.Context) (bool, error) {
	for _, t := range document.AllDocTypes() {
		docs, err := h.Docs.List(ctx, t, document.ListFilter{})
		if err != nil {
			return false, err
		}
		if len(docs) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// submit creates a document through the normal path in submitted state.
func (h *Handler) submit(ctx context.Context, t document.DocType, draft *document.Document, actor document.Actor) (*document.Document, error) {
	doc, err := h.Docs.Create(ctx, t, draft, false, actor)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", t, err)
	}
	return doc, nil
}

// approve moves a submitted document to approved as the demo manager.
func (h *Handler) approve(ctx context.Context, t document.DocType, id document.DocumentID) error {
	if _, err := h.Docs.Transition(ctx, t, id, document.ActionApprove, demoManager, ""); err != nil {
		return fmt.Errorf("approve %s %s: %w", t, id, err)
	}
	return nil
}

func travelAdvanceDraft(amount float64) *document.Document {
	return &document.Document{
		CompanyID:  "comp-1",
		Department: "dept-3",
		Purpose:    "Site visit travel advance",
		LineItems: []document.LineItem{
			{Description: "Travel advance", Amount: mustAmount(amount)},
		},
	}
}

func mustAmount(v float64) decimal.Decimal {
	amount, err := document.ParseAmount("amount", v)
	if err != nil {
		panic(err) // scenario seed data is fixed and valid
	}
	return amount
}

// loadApprovalQueueScenario seeds one submitted document per module so
// the manager dashboard has work in every queue.
func (h *Handler) loadApprovalQueueScenario(ctx context.Context) error {
	if _, err := h.submit(ctx, document.DocAdvance, travelAdvanceDraft(5000), demoEmployee); err != nil {
		return err
	}

	if _, err := h.submit(ctx, document.DocPayment, &document.Document{
		CompanyID:     "comp-2",
		Department:    "dept-6",
		Purpose:       "Vendor invoice INV-2045",
		PaymentMethod: "transfer",
		BankID:        "bank-1",
		AccountNumber: "123-4-56789-0",
		Payee:         "Oceanic Supplies Co., Ltd.",
		VendorID:      "V-10023",
		LineItems: []document.LineItem{
			{
				Description: "Mooring equipment",
				Amount:      mustAmount(20000),
				CostCenter:  "CC3001",
				Additions: []document.Addition{
					{Type: document.AdditionVAT, Rate: mustAmount(7)},
					{Type: document.AdditionWHT, Rate: mustAmount(3)},
				},
			},
		},
	}, demoEmployee); err != nil {
		return err
	}

	if _, err := h.submit(ctx, document.DocExpense, &document.Document{
		CompanyID:  "comp-1",
		Department: "dept-2",
		Purpose:    "Client meeting expenses",
		LineItems: []document.LineItem{
			{Description: "Taxi to client office", Amount: mustAmount(350), ExpenseType: "transportMileage"},
			{Description: "Working lunch", Amount: mustAmount(1200), ExpenseType: "meals"},
		},
	}, demoEmployee2); err != nil {
		return err
	}

	if _, err := h.submit(ctx, document.DocPettyCash, &document.Document{
		CompanyID:  "comp-1",
		Department: "dept-8",
		Purpose:    "Office supplies top-up",
		LineItems: []document.LineItem{
			{Description: "Printer paper", Amount: mustAmount(890), ExpenseType: "communication"},
		},
	}, demoEmployee2); err != nil {
		return err
	}

	return nil
}

// loadReconciliationReadyScenario seeds an approved advance with two
// approved linked expenses so accounting can walk the clearing flow.
func (h *Handler) loadReconciliationReadyScenario(ctx context.Context) error {
	adv, err := h.submit(ctx, document.DocAdvance, travelAdvanceDraft(5000), demoEmployee)
	if err != nil {
		return err
	}
	if err := h.approve(ctx, document.DocAdvance, adv.ID); err != nil {
		return err
	}

	for _, seed := range []struct {
		desc   string
		amount float64
		etype  string
	}{
		{"Hotel, 2 nights", 3200, "accommodation"},
		{"Meals during trip", 1300, "meals"},
	} {
		exp, err := h.submit(ctx, document.DocExpense, &document.Document{
			CompanyID:  "comp-1",
			Department: "dept-3",
			Purpose:    "Site visit expenses",
			AdvanceID:  adv.ID,
			LineItems: []document.LineItem{
				{Description: seed.desc, Amount: mustAmount(seed.amount), ExpenseType: seed.etype},
			},
		}, demoEmployee)
		if err != nil {
			return err
		}
		if err := h.approve(ctx, document.DocExpense, exp.ID); err != nil {
			return err
		}
	}

	return nil
}

// loadMonthEndScenario seeds a mix of statuses across the lifecycle:
// a draft, a returned document, pending approvals, an approved payment
// awaiting disbursement, and a reconciliation-ready advance.
func (h *Handler) loadMonthEndScenario(ctx context.Context) error {
	// Draft petty cash, still editable.
	if _, err := h.Docs.Create(ctx, document.DocPettyCash, &document.Document{
		CompanyID:  "comp-3",
		Department: "dept-8",
		Purpose:    "Courier charges",
		LineItems: []document.LineItem{
			{Description: "Document courier", Amount: mustAmount(240)},
		},
	}, true, demoEmployee); err != nil {
		return fmt.Errorf("seed draft petty cash: %w", err)
	}

	// Expense returned for correction.
	exp, err := h.submit(ctx, document.DocExpense, &document.Document{
		CompanyID:  "comp-1",
		Department: "dept-2",
		Purpose:    "Conference travel",
		LineItems: []document.LineItem{
			{Description: "Airfare", Amount: mustAmount(8400), ExpenseType: "transportMileage"},
		},
	}, demoEmployee2)
	if err != nil {
		return err
	}
	if _, err := h.Docs.Transition(ctx, document.DocExpense, exp.ID, document.ActionReturn,
		demoManager, "Attach the boarding passes"); err != nil {
		return fmt.Errorf("return expense: %w", err)
	}

	// Payment approved and disbursed, ready for posting.
	pay, err := h.submit(ctx, document.DocPayment, &document.Document{
		CompanyID:     "comp-2",
		Department:    "dept-6",
		Purpose:       "Monthly berth rental",
		PaymentMethod: "transfer",
		BankID:        "bank-3",
		AccountNumber: "987-6-54321-0",
		Payee:         "Harbor Estates Ltd.",
		VendorID:      "V-10310",
		LineItems: []document.LineItem{
			{
				Description: "Berth rental, August",
				Amount:      mustAmount(45000),
				CostCenter:  "CC3001",
				Additions: []document.Addition{
					{Type: document.AdditionVAT, Rate: mustAmount(7)},
					{Type: document.AdditionWHT, Rate: mustAmount(5)},
				},
			},
		},
	}, demoEmployee)
	if err != nil {
		return err
	}
	if err := h.approve(ctx, document.DocPayment, pay.ID); err != nil {
		return err
	}
	if _, err := h.Docs.Transition(ctx, document.DocPayment, pay.ID, document.ActionDisburse,
		demoAccounting, ""); err != nil {
		return fmt.Errorf("disburse payment: %w", err)
	}

	// Reconciliation-ready advance plus a fresh pending one.
	if err := h.loadReconciliationReadyScenario(ctx); err != nil {
		return err
	}
	if _, err := h.submit(ctx, document.DocAdvance, travelAdvanceDraft(12000), demoEmployee2); err != nil {
		return err
	}

	return nil
}
