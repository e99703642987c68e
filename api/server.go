/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/advances/*         Advance requests + clearing
  /api/payments/*         Payment requests + disbursement
  /api/expenses/*         Expense claims
  /api/petty-cash/*       Petty cash requests
  /api/reconciliations    Derived reconciliation views
  /api/postings           Simulated ledger postings
  /api/approvals/pending  Manager dashboard aggregate
  /api/reference/*        Static reference data
  /api/scenarios/*        Demo scenarios

SECURITY NOTE:
  Actor identity comes from X-User-ID / X-Role headers with no
  authentication behind them. This mirrors the role-toggle UX of the
  frontend; do not expose the server beyond a demo network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meridian/finrequest/document"
)

// RouterConfig carries the router-level knobs owned by the caller.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// The four request modules share one handler set; the document
		// type is fixed per route group.
		r.Route("/advances", func(r chi.Router) {
			documentRoutes(r, h, document.DocAdvance)
			r.Get("/{id}/reconciliation", h.PreviewReconciliation)
			r.Post("/{id}/clear", h.ClearAdvance)
		})
		r.Route("/payments", func(r chi.Router) {
			documentRoutes(r, h, document.DocPayment)
			r.Post("/{id}/disburse", h.TransitionDocument(document.DocPayment, document.ActionDisburse))
		})
		r.Route("/expenses", func(r chi.Router) {
			documentRoutes(r, h, document.DocExpense)
		})
		r.Route("/petty-cash", func(r chi.Router) {
			documentRoutes(r, h, document.DocPettyCash)
		})

		// Reconciliation views
		r.Get("/reconciliations", h.ListReconciliations)

		// Ledger postings
		r.Get("/postings", h.ListPostings)
		r.Get("/postings/{recordId}", h.GetPostingBySource)

		// Dashboard
		r.Get("/approvals/pending", h.PendingApprovals)

		// Reference data
		r.Route("/reference", func(r chi.Router) {
			r.Get("/companies", h.ListCompanies)
			r.Get("/banks", h.ListBanks)
			r.Get("/departments", h.ListDepartments)
			r.Get("/cost-centers", h.ListCostCenters)
			r.Get("/expense-types", h.ListExpenseTypes)
			r.Get("/payment-methods", h.ListPaymentMethods)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// documentRoutes registers the shared lifecycle routes for one module.
func documentRoutes(r chi.Router, h *Handler, t document.DocType) {
	r.Get("/", h.ListDocuments(t))
	r.Post("/", h.CreateDocument(t))
	r.Post("/totals", h.PreviewTotals(t))
	r.Get("/{id}", h.GetDocument(t))
	r.Put("/{id}", h.UpdateDocument(t))
	r.Post("/{id}/submit", h.TransitionDocument(t, document.ActionSubmit))
	r.Post("/{id}/approve", h.TransitionDocument(t, document.ActionApprove))
	r.Post("/{id}/reject", h.TransitionDocument(t, document.ActionReject))
	r.Post("/{id}/return", h.TransitionDocument(t, document.ActionReturn))
	r.Post("/{id}/post", h.PostDocument(t))
}
