/*
handlers.go - HTTP API handlers for the financial request engine

PURPOSE:
  Exposes the request engine via REST API. Handles HTTP request/response,
  JSON serialization, actor extraction, and delegates to domain logic.

ENDPOINTS:
  Documents (advances, payments, expenses, petty-cash):
    GET    /api/{module}                  List documents
    POST   /api/{module}                  Create (draft or submitted)
    POST   /api/{module}/totals           Preview totals for draft lines
    GET    /api/{module}/{id}             Get document
    PUT    /api/{module}/{id}             Update editable draft
    POST   /api/{module}/{id}/submit      Submit or resubmit
    POST   /api/{module}/{id}/approve     Approve (manager)
    POST   /api/{module}/{id}/reject     Reject with comment (manager)
    POST   /api/{module}/{id}/return     Return with comment (manager)
    POST   /api/{module}/{id}/post        Post to ledger (accounting)
    POST   /api/payments/{id}/disburse    Disburse (accounting, payments only)

  Reconciliation:
    GET    /api/reconciliations           Derived + cleared reconciliations
    POST   /api/advances/{id}/clear       Clear an advance (accounting)

  Ledger:
    GET    /api/postings                  All simulated ledger postings
    GET    /api/postings/{recordId}       Posting for one source record

  Dashboard:
    GET    /api/approvals/pending         Pending-approval count and list

  Reference data:
    GET    /api/reference/companies|banks|departments|cost-centers|
           expense-types|payment-methods

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    POST   /api/scenarios/load            Load a demo scenario

ACTOR MODEL:
  The acting user arrives via headers: X-User-ID (required) and X-Role
  (employee, manager, accounting; defaults to employee). Authorization
  decisions live in the domain layer; handlers only extract the actor.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid amounts, missing comment
  - 403: Role or ownership does not allow the action
  - 404: Document not found
  - 409: Invalid transition, duplicate posting, posting in flight
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/ledger"
	"github.com/meridian/finrequest/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Docs   *document.Service
	Settle *settlement.Service
	Poster *ledger.Poster

	validate *validator.Validate
	log      *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the given services.
func NewHandler(docs *document.Service, settle *settlement.Service, poster *ledger.Poster, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Docs:     docs,
		Settle:   settle,
		Poster:   poster,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// actorFrom extracts the acting user from request headers. X-User-ID is
// required; X-Role defaults to employee and must name a known role.
func actorFrom(r *http.Request) (document.Actor, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		return document.Actor{}, false
	}
	role := document.Role(r.Header.Get("X-Role"))
	switch role {
	case "":
		role = document.RoleEmployee
	case document.RoleEmployee, document.RoleManager, document.RoleAccounting:
	default:
		return document.Actor{}, false
	}
	return document.Actor{ID: document.UserID(id), Role: role}, true
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (document.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-User-ID / X-Role headers", nil)
		return document.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// DOCUMENT HANDLERS
//
// One set of handlers serves all four request modules. The document type
// is bound at route-registration time, so an unknown module name can
// never reach a handler.
// =============================================================================

// CreateDocument creates a document as draft or submits it immediately.
func (h *Handler) CreateDocument(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.requireActor(w, r)
		if !ok {
			return
		}

		var req CreateDocumentRequest
		if !h.decodeValid(w, r, &req) {
			return
		}

		draft, err := req.toDraft()
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		doc, err := h.Docs.Create(r.Context(), t, draft, req.AsDraft, actor)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		writeJSON(w, http.StatusCreated, fromDomainDocument(doc))
	}
}

// ListDocuments returns documents of one type, optionally filtered by
// status, requester, or linked advance via query parameters.
func (h *Handler) ListDocuments(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := document.ListFilter{
			Status:      document.Status(q.Get("status")),
			RequesterID: document.UserID(q.Get("requesterId")),
			AdvanceID:   document.DocumentID(q.Get("advanceId")),
		}

		docs, err := h.Docs.List(r.Context(), t, filter)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		dtos := make([]DocumentDTO, 0, len(docs))
		for _, d := range docs {
			dtos = append(dtos, fromDomainDocument(d))
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// GetDocument returns a single document.
func (h *Handler) GetDocument(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := document.DocumentID(chi.URLParam(r, "id"))

		doc, err := h.Docs.Get(r.Context(), t, id)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, "Document not found", nil)
			return
		}

		writeJSON(w, http.StatusOK, fromDomainDocument(doc))
	}
}

// UpdateDocument replaces the editable fields of a draft, returned, or
// rejected document owned by the actor. Lines are repriced server-side.
func (h *Handler) UpdateDocument(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.requireActor(w, r)
		if !ok {
			return
		}
		id := document.DocumentID(chi.URLParam(r, "id"))

		var req CreateDocumentRequest
		if !h.decodeValid(w, r, &req) {
			return
		}
		patch, err := req.toDraft()
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		doc, err := h.Docs.UpdateDraft(r.Context(), t, id, actor, func(d *document.Document) {
			d.CompanyID = patch.CompanyID
			d.Department = patch.Department
			d.Purpose = patch.Purpose
			d.LineItems = patch.LineItems
			d.PaymentMethod = patch.PaymentMethod
			d.BankID = patch.BankID
			d.AccountNumber = patch.AccountNumber
			d.Payee = patch.Payee
			d.VendorID = patch.VendorID
			d.Memo = patch.Memo
			d.Note = patch.Note
			d.AdvanceID = patch.AdvanceID
		})
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		writeJSON(w, http.StatusOK, fromDomainDocument(doc))
	}
}

// TransitionDocument applies one workflow action (submit, approve,
// reject, return, disburse) to a document.
func (h *Handler) TransitionDocument(t document.DocType, action document.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.requireActor(w, r)
		if !ok {
			return
		}
		id := document.DocumentID(chi.URLParam(r, "id"))

		// Comment body is optional for submit and approve.
		var req TransitionRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid request body", err)
				return
			}
		}

		doc, err := h.Docs.Transition(r.Context(), t, id, action, actor, req.Comment)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		writeJSON(w, http.StatusOK, fromDomainDocument(doc))
	}
}

// PreviewTotals prices a set of lines without persisting anything, for
// live form totals.
func (h *Handler) PreviewTotals(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TotalsRequest
		if !h.decodeValid(w, r, &req) {
			return
		}

		items, err := toDomainLines(req.LineItems)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		totals, err := h.Docs.PreviewTotals(t, items)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		dto := TotalsDTO{TotalAmount: totals.TotalAmount.InexactFloat64()}
		for _, net := range totals.PerLineNet {
			dto.PerLineNet = append(dto.PerLineNet, net.InexactFloat64())
		}
		writeJSON(w, http.StatusOK, dto)
	}
}

// =============================================================================
// LEDGER POSTING
// =============================================================================

// PostResultDTO pairs the updated document with its ledger posting.
type PostResultDTO struct {
	Document DocumentDTO `json:"document"`
	Posting  PostingDTO  `json:"posting"`
}

// PostDocument posts an approved (or, for payments, disbursed) document
// to the simulated ledger and records the outcome on the document.
func (h *Handler) PostDocument(t document.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.requireActor(w, r)
		if !ok {
			return
		}
		id := document.DocumentID(chi.URLParam(r, "id"))
		ctx := r.Context()

		doc, err := h.Docs.Get(ctx, t, id)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, "Document not found", nil)
			return
		}

		if err := document.CanPost(doc, actor); err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		posting, err := h.Poster.Post(ctx, t, doc)
		if err != nil {
			writeDomainError(w, h.log, err)
			return
		}

		updated, err := h.Docs.MarkPosted(ctx, t, id, posting.DocumentNumber)
		if err != nil {
			// The posting is in the log but the document update failed.
			// Surface the error; the duplicate guard prevents re-posting.
			h.log.Error("posting recorded but document update failed",
				zap.String("id", string(id)), zap.Error(err))
			writeDomainError(w, h.log, err)
			return
		}

		writeJSON(w, http.StatusOK, PostResultDTO{
			Document: fromDomainDocument(updated),
			Posting:  fromDomainPosting(posting),
		})
	}
}

// ListPostings returns every simulated ledger posting, oldest first.
func (h *Handler) ListPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.Poster.Log().List(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	dtos := make([]PostingDTO, 0, len(postings))
	for i := range postings {
		dtos = append(dtos, fromDomainPosting(&postings[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPostingBySource returns the posting produced for one source
// document, or 404 when it has not been posted.
func (h *Handler) GetPostingBySource(w http.ResponseWriter, r *http.Request) {
	recordID := document.DocumentID(chi.URLParam(r, "recordId"))

	posting, err := h.Poster.Log().BySource(r.Context(), recordID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if posting == nil {
		writeError(w, http.StatusNotFound, "No posting for this record", nil)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainPosting(posting))
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ListReconciliations returns the derived reconciliation view of every
// reconcilable advance, merged with persisted cleared records.
func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	views, err := h.Settle.List(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	dtos := make([]ReconciliationDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, fromDomainView(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClearResultDTO pairs the cleared reconciliation with its posting.
type ClearResultDTO struct {
	Reconciliation ReconciliationDTO `json:"reconciliation"`
	Posting        PostingDTO        `json:"posting"`
}

// ClearAdvance reconciles and clears an advance: computes the
// settlement, creates the reconciliation record, posts it to the
// ledger, and marks both records cleared atomically.
func (h *Handler) ClearAdvance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	advanceID := document.DocumentID(chi.URLParam(r, "id"))

	var req ClearRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !h.decodeValid(w, r, &req) {
			return
		}
	}

	additional, err := toDomainLines(req.AdditionalExpenses)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	view, posting, err := h.Settle.Clear(r.Context(), advanceID, actor, additional, req.Note)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ClearResultDTO{
		Reconciliation: fromDomainView(*view),
		Posting:        fromDomainPosting(posting),
	})
}

// PreviewReconciliation returns the derived settlement for one advance
// without persisting anything.
func (h *Handler) PreviewReconciliation(w http.ResponseWriter, r *http.Request) {
	advanceID := document.DocumentID(chi.URLParam(r, "id"))

	view, err := h.Settle.Preview(r.Context(), advanceID, nil)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, fromDomainView(*view))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// PendingApprovalsDTO is the manager dashboard aggregate.
type PendingApprovalsDTO struct {
	Pending   int           `json:"pending"`
	Documents []DocumentDTO `json:"documents"`
}

// PendingApprovals returns the count and list of documents awaiting
// approval across all four request modules.
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Docs.PendingApprovals(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	out := PendingApprovalsDTO{Documents: make([]DocumentDTO, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, fromDomainDocument(d))
	}
	out.Pending = len(out.Documents)

	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case document.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Document not found", err)
	case errors.Is(err, document.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "Action not permitted", err)
	case errors.Is(err, document.ErrInvalidTransition),
		errors.Is(err, document.ErrDuplicatePosting),
		errors.Is(err, document.ErrPostingInFlight),
		errors.Is(err, document.ErrNotApproved):
		writeError(w, http.StatusConflict, "Conflicting document state", err)
	case document.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
