/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (decimal amounts, typed IDs) from the external
  API contract (plain JSON numbers and strings), allowing:
  - Field renaming without breaking clients
  - API-specific validation tags
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator tags checked in handlers. Monetary values
  are additionally validated in the domain layer, which rejects negative
  and non-finite amounts.

SEE ALSO:
  - handlers.go: Uses these types
  - document/types.go: Domain model these map to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/ledger"
	"github.com/meridian/finrequest/settlement"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// AdditionDTO is a payment-line tax or deduction. Amount is computed
// server-side from the line amount and rate; any client-sent value is
// ignored.
type AdditionDTO struct {
	Type   string  `json:"type" validate:"oneof=vat wht retention"`
	Rate   float64 `json:"rate" validate:"gte=0,lte=100"`
	Amount float64 `json:"amount"`
}

// LineItemDTO is one monetary entry on a document.
type LineItemDTO struct {
	Description string        `json:"description"`
	Amount      float64       `json:"amount" validate:"gte=0"`
	VATRate     float64       `json:"vatRate"`
	WHTRate     float64       `json:"whtRate"`
	CostCenter  string        `json:"wbsCostCenter,omitempty"`
	Additions   []AdditionDTO `json:"additions,omitempty" validate:"dive"`
	ExpenseType string        `json:"expenseType,omitempty"`
	GLAccount   string        `json:"glAccount,omitempty"`
	NetAmount   float64       `json:"netAmount,omitempty"`
}

func (dto LineItemDTO) toDomain() (document.LineItem, error) {
	amount, err := document.ParseAmount("amount", dto.Amount)
	if err != nil {
		return document.LineItem{}, err
	}
	li := document.LineItem{
		Description: dto.Description,
		Amount:      amount,
		VATRate:     decimal.NewFromFloat(dto.VATRate),
		WHTRate:     decimal.NewFromFloat(dto.WHTRate),
		CostCenter:  dto.CostCenter,
		ExpenseType: dto.ExpenseType,
		GLAccount:   dto.GLAccount,
	}
	for _, a := range dto.Additions {
		rate, err := document.ParseAmount("addition rate", a.Rate)
		if err != nil {
			return document.LineItem{}, err
		}
		li.Additions = append(li.Additions, document.Addition{
			Type: document.AdditionType(a.Type),
			Rate: rate,
		})
	}
	return li, nil
}

func toDomainLines(dtos []LineItemDTO) ([]document.LineItem, error) {
	items := make([]document.LineItem, 0, len(dtos))
	for _, dto := range dtos {
		li, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, nil
}

func fromDomainLine(li document.LineItem) LineItemDTO {
	dto := LineItemDTO{
		Description: li.Description,
		Amount:      li.Amount.InexactFloat64(),
		VATRate:     li.VATRate.InexactFloat64(),
		WHTRate:     li.WHTRate.InexactFloat64(),
		CostCenter:  li.CostCenter,
		ExpenseType: li.ExpenseType,
		GLAccount:   li.GLAccount,
		NetAmount:   li.Net.InexactFloat64(),
	}
	for _, a := range li.Additions {
		dto.Additions = append(dto.Additions, AdditionDTO{
			Type:   string(a.Type),
			Rate:   a.Rate.InexactFloat64(),
			Amount: a.Amount.InexactFloat64(),
		})
	}
	return dto
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// CreateDocumentRequest creates a document in draft or submitted state.
// Fields beyond the common set apply only to specific document types
// (payment details, advance linkage) and are ignored elsewhere.
type CreateDocumentRequest struct {
	AsDraft       bool          `json:"asDraft"`
	CompanyID     string        `json:"companyId"`
	Department    string        `json:"department"`
	Purpose       string        `json:"purpose"`
	LineItems     []LineItemDTO `json:"lineItems" validate:"min=1,dive"`
	PaymentMethod string        `json:"paymentMethod"`
	BankID        string        `json:"bankId"`
	AccountNumber string        `json:"accountNumber"`
	Payee         string        `json:"payee"`
	VendorID      string        `json:"vendorId"`
	Memo          string        `json:"memo"`
	Note          string        `json:"note"`
	AdvanceID     string        `json:"advanceId"`
}

func (req CreateDocumentRequest) toDraft() (*document.Document, error) {
	items, err := toDomainLines(req.LineItems)
	if err != nil {
		return nil, err
	}
	return &document.Document{
		CompanyID:     req.CompanyID,
		Department:    req.Department,
		Purpose:       req.Purpose,
		LineItems:     items,
		PaymentMethod: req.PaymentMethod,
		BankID:        req.BankID,
		AccountNumber: req.AccountNumber,
		Payee:         req.Payee,
		VendorID:      req.VendorID,
		Memo:          req.Memo,
		Note:          req.Note,
		AdvanceID:     document.DocumentID(req.AdvanceID),
	}, nil
}

// TransitionRequest carries the comment for a workflow action. Reject
// and return require it; the rest treat it as optional.
type TransitionRequest struct {
	Comment string `json:"comment"`
}

// TotalsRequest asks for a live total preview without persisting anything.
type TotalsRequest struct {
	LineItems []LineItemDTO `json:"lineItems" validate:"min=1,dive"`
}

// TotalsDTO is the preview result.
type TotalsDTO struct {
	TotalAmount float64   `json:"totalAmount"`
	PerLineNet  []float64 `json:"perLineNet"`
}

// ClearRequest reconciles and clears an advance.
type ClearRequest struct {
	AdditionalExpenses []LineItemDTO `json:"additionalExpenses" validate:"dive"`
	Note               string        `json:"note"`
}

// ApprovalDTO is one audit-trail entry.
type ApprovalDTO struct {
	UserID  string `json:"userId"`
	Action  string `json:"action"`
	Date    string `json:"date"`
	Comment string `json:"comment,omitempty"`
}

// DocumentDTO represents a document in API responses.
type DocumentDTO struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	DocNumber     string        `json:"docNumber"`
	RequesterID   string        `json:"requesterId"`
	Status        string        `json:"status"`
	CompanyID     string        `json:"companyId,omitempty"`
	Department    string        `json:"department,omitempty"`
	Purpose       string        `json:"purpose,omitempty"`
	LineItems     []LineItemDTO `json:"lineItems"`
	Approvals     []ApprovalDTO `json:"approvals"`
	TotalAmount   float64       `json:"totalAmount"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	BankID        string        `json:"bankId,omitempty"`
	AccountNumber string        `json:"accountNumber,omitempty"`
	Payee         string        `json:"payee,omitempty"`
	VendorID      string        `json:"vendorId,omitempty"`
	Memo          string        `json:"memo,omitempty"`
	Note          string        `json:"note,omitempty"`
	AdvanceID     string        `json:"advanceId,omitempty"`
	SAPDocNumber  string        `json:"sapDocNumber,omitempty"`

	// Reconciliation-only fields.
	AdvanceDocNumber string  `json:"advanceDocNumber,omitempty"`
	AdvanceAmount    float64 `json:"advanceAmount,omitempty"`
	TotalExpenses    float64 `json:"totalExpenses,omitempty"`
	NetSettlement    float64 `json:"netSettlement,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func fromDomainDocument(d *document.Document) DocumentDTO {
	dto := DocumentDTO{
		ID:            string(d.ID),
		Type:          string(d.Type),
		DocNumber:     d.DocNumber,
		RequesterID:   string(d.RequesterID),
		Status:        string(d.Status),
		CompanyID:     d.CompanyID,
		Department:    d.Department,
		Purpose:       d.Purpose,
		LineItems:     make([]LineItemDTO, 0, len(d.LineItems)),
		Approvals:     make([]ApprovalDTO, 0, len(d.Approvals)),
		TotalAmount:   d.TotalAmount.InexactFloat64(),
		PaymentMethod: d.PaymentMethod,
		BankID:        d.BankID,
		AccountNumber: d.AccountNumber,
		Payee:         d.Payee,
		VendorID:      d.VendorID,
		Memo:          d.Memo,
		Note:          d.Note,
		AdvanceID:     string(d.AdvanceID),
		SAPDocNumber:  d.SAPDocNumber,

		AdvanceDocNumber: d.AdvanceDocNumber,
		AdvanceAmount:    d.AdvanceAmount.InexactFloat64(),
		TotalExpenses:    d.TotalExpenses.InexactFloat64(),
		NetSettlement:    d.NetSettlement.InexactFloat64(),

		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
	for _, li := range d.LineItems {
		dto.LineItems = append(dto.LineItems, fromDomainLine(li))
	}
	for _, a := range d.Approvals {
		dto.Approvals = append(dto.Approvals, ApprovalDTO{
			UserID:  string(a.UserID),
			Action:  a.Action,
			Date:    a.Date.Format(time.RFC3339),
			Comment: a.Comment,
		})
	}
	return dto
}

// =============================================================================
// POSTINGS
// =============================================================================

// GLLineDTO is one side of a posting's double entry.
type GLLineDTO struct {
	LineNumber    int     `json:"lineNumber"`
	GLAccount     string  `json:"glAccount"`
	GLAccountName string  `json:"glAccountName"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
	CostCenter    string  `json:"costCenter,omitempty"`
	Text          string  `json:"text,omitempty"`
}

// PostingDTO represents a ledger posting in API responses.
type PostingDTO struct {
	DocumentNumber string      `json:"documentNumber"`
	CompanyCode    string      `json:"companyCode"`
	FiscalYear     int         `json:"fiscalYear"`
	PostingDate    string      `json:"postingDate"`
	Period         int         `json:"period"`
	Currency       string      `json:"currency"`
	Reference      string      `json:"reference"`
	DocumentType   string      `json:"documentType"`
	LineItems      []GLLineDTO `json:"lineItems"`
	Status         string      `json:"status"`
	SourceModule   string      `json:"sourceModule"`
	SourceRecordID string      `json:"sourceRecordId"`
	CreatedAt      string      `json:"createdAt"`
}

func fromDomainPosting(p *ledger.Posting) PostingDTO {
	dto := PostingDTO{
		DocumentNumber: p.DocumentNumber,
		CompanyCode:    p.CompanyCode,
		FiscalYear:     p.FiscalYear,
		PostingDate:    p.PostingDate,
		Period:         p.Period,
		Currency:       p.Currency,
		Reference:      p.Reference,
		DocumentType:   p.DocumentType,
		Status:         p.Status,
		SourceModule:   string(p.SourceModule),
		SourceRecordID: string(p.SourceRecordID),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	for _, l := range p.LineItems {
		dto.LineItems = append(dto.LineItems, GLLineDTO{
			LineNumber:    l.LineNumber,
			GLAccount:     l.GLAccount,
			GLAccountName: l.GLAccountName,
			Debit:         l.Debit.InexactFloat64(),
			Credit:        l.Credit.InexactFloat64(),
			CostCenter:    l.CostCenter,
			Text:          l.Text,
		})
	}
	return dto
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationDTO represents a derived or cleared reconciliation view.
type ReconciliationDTO struct {
	ID                 string        `json:"id,omitempty"`
	DocNumber          string        `json:"docNumber,omitempty"`
	AdvanceID          string        `json:"advanceId"`
	AdvanceDocNumber   string        `json:"advanceDocNumber"`
	RequesterID        string        `json:"requesterId"`
	Purpose            string        `json:"purpose,omitempty"`
	Status             string        `json:"status"`
	AdvanceAmount      float64       `json:"advanceAmount"`
	TotalExpenses      float64       `json:"totalExpenses"`
	NetSettlement      float64       `json:"netSettlement"`
	ExpenseIDs         []string      `json:"expenseIds,omitempty"`
	AdditionalExpenses []LineItemDTO `json:"additionalExpenses,omitempty"`
	SAPDocNumber       string        `json:"sapDocNumber,omitempty"`
	ClearedBy          string        `json:"clearedBy,omitempty"`
	ClearedDate        string        `json:"clearedDate,omitempty"`
	Note               string        `json:"note,omitempty"`
}

func fromDomainView(v settlement.View) ReconciliationDTO {
	dto := ReconciliationDTO{
		ID:               string(v.ID),
		DocNumber:        v.DocNumber,
		AdvanceID:        string(v.AdvanceID),
		AdvanceDocNumber: v.AdvanceDocNumber,
		RequesterID:      string(v.RequesterID),
		Purpose:          v.Purpose,
		Status:           string(v.Status),
		AdvanceAmount:    v.AdvanceAmount.InexactFloat64(),
		TotalExpenses:    v.TotalExpenses.InexactFloat64(),
		NetSettlement:    v.NetSettlement.InexactFloat64(),
		SAPDocNumber:     v.SAPDocNumber,
		ClearedBy:        string(v.ClearedBy),
		Note:             v.Note,
	}
	for _, id := range v.ExpenseIDs {
		dto.ExpenseIDs = append(dto.ExpenseIDs, string(id))
	}
	for _, li := range v.AdditionalExpenses {
		dto.AdditionalExpenses = append(dto.AdditionalExpenses, fromDomainLine(li))
	}
	if !v.ClearedDate.IsZero() {
		dto.ClearedDate = v.ClearedDate.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// MISC
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario by ID.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
