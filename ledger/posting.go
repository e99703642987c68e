/*
Package ledger simulates the downstream ERP posting step.

PURPOSE:
  Turns an approved document into a structurally valid double-entry
  posting: a generated sequential document number, a resolved company
  code, a fixed fiscal year, and exactly two GL lines whose debit and
  credit amounts are equal. No real ERP wire format is involved; the
  contract is entirely synthetic.

KEY CONCEPTS IN THIS FILE (posting.go):
  - Posting / GLLine: the immutable posting record
  - company table and code resolution
  - the static per-type GL account mapping
  - line construction (always two lines, always balanced)

ACCOUNT MAPPING:
  advance         debit 3100054 Staff Advance      credit 2302688 Bank
  payment         debit <vendor>                   credit 2302688 Bank
  expense         debit <expense line GL>          credit 3100054 Staff Advance (Clearing)
  pettyCash       debit <expense line GL>          credit 210103  Petty Cash Payable
  reconciliation  debit <expense line GL>          credit 3100054 Staff Advance (Clearing)

  Tax is already netted into the document total by the line-item
  calculators; the ledger level does no tax breakdown, splitting, or
  currency conversion.

SEE ALSO:
  - simulator.go: the Poster, sequence, latency, and in-flight guard
*/
package ledger

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/finrequest/document"
)

// Fixed simulator constants, matching the downstream system being
// imitated.
const (
	FiscalYear      = 2026
	Currency        = "THB"
	SequenceSeed    = 209000001
	FallbackCompany = "1000"

	// Document type codes: KR for petty cash, KZ for everything else.
	docTypePettyCash = "KR"
	docTypeDefault   = "KZ"
)

// =============================================================================
// POSTING RECORD
// =============================================================================

// GLLine is one side of the double entry.
type GLLine struct {
	LineNumber    int             `json:"lineNumber"`
	GLAccount     string          `json:"glAccount"`
	GLAccountName string          `json:"glAccountName"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	CostCenter    string          `json:"costCenter"`
	ProfitCenter  string          `json:"profitCenter"`
	Text          string          `json:"text"`
}

// Posting is the immutable record produced once per source document.
type Posting struct {
	DocumentNumber string              `json:"documentNumber"`
	CompanyCode    string              `json:"companyCode"`
	FiscalYear     int                 `json:"fiscalYear"`
	PostingDate    string              `json:"postingDate"`
	Period         int                 `json:"period"`
	Currency       string              `json:"currency"`
	Reference      string              `json:"reference"`
	DocumentType   string              `json:"documentType"`
	LineItems      []GLLine            `json:"lineItems"`
	Status         string              `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	SourceModule   document.DocType    `json:"sourceModule"`
	SourceRecordID document.DocumentID `json:"sourceRecordId"`
}

// =============================================================================
// COMPANY RESOLUTION
// =============================================================================

// Company is one entry of the company reference table.
type Company struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// Companies is the static company table.
var Companies = []Company{
	{ID: "comp-1", Code: "1000", Name: "Alpha Holdings", ShortName: "AH"},
	{ID: "comp-2", Code: "2000", Name: "Beta Marine", ShortName: "BM"},
	{ID: "comp-3", Code: "3000", Name: "Gamma Logistics", ShortName: "GL"},
	{ID: "comp-4", Code: "4000", Name: "Delta Energy", ShortName: "DE"},
	{ID: "comp-5", Code: "5000", Name: "Epsilon Tech", ShortName: "ET"},
}

var numericCode = regexp.MustCompile(`^\d+$`)

// ResolveCompanyCode prefers an explicit numeric code, then the company
// ID lookup, then the fixed fallback.
func ResolveCompanyCode(doc *document.Document) string {
	if doc.CompanyCode != "" && numericCode.MatchString(doc.CompanyCode) {
		return doc.CompanyCode
	}
	if doc.CompanyID != "" {
		for _, c := range Companies {
			if c.ID == doc.CompanyID {
				return c.Code
			}
		}
	}
	return FallbackCompany
}

// =============================================================================
// GL ACCOUNT MAPPING
// =============================================================================

// Placeholder accounts resolved from the source document at build time.
const (
	accountVendor  = "VENDOR"
	accountExpense = "EXPENSE"

	defaultExpenseGL = "6200010"
)

type glSide struct {
	account string
	name    string
}

type glMapping struct {
	debit  glSide
	credit glSide
}

var glAccounts = map[document.DocType]glMapping{
	document.DocAdvance: {
		debit:  glSide{"3100054", "Staff Advance"},
		credit: glSide{"2302688", "Bank"},
	},
	document.DocPayment: {
		debit:  glSide{accountVendor, "Vendor Account"},
		credit: glSide{"2302688", "Bank"},
	},
	document.DocExpense: {
		debit:  glSide{accountExpense, "Expense Account"},
		credit: glSide{"3100054", "Staff Advance (Clearing)"},
	},
	document.DocPettyCash: {
		debit:  glSide{accountExpense, "Expense Account"},
		credit: glSide{"210103", "Petty Cash Payable"},
	},
	document.DocReconciliation: {
		debit:  glSide{accountExpense, "Expense Account"},
		credit: glSide{"3100054", "Staff Advance (Clearing)"},
	},
}

// docTypeCode selects the two-entry document type mapping.
func docTypeCode(t document.DocType) string {
	if t == document.DocPettyCash {
		return docTypePettyCash
	}
	return docTypeDefault
}

// buildLines emits the two balanced GL lines for a document. Line 1
// carries the resolved debit account and the full amount as debit;
// line 2 carries the type's fixed credit account and the same amount as
// credit.
func buildLines(t document.DocType, doc *document.Document) []GLLine {
	mapping := glAccounts[t]
	amount := doc.TotalAmount

	debitAccount := mapping.debit.account
	debitName := mapping.debit.name
	switch debitAccount {
	case accountVendor:
		debitAccount = orDefault(doc.VendorID, accountVendor)
		debitName = orDefault(doc.Payee, "Vendor Account")
	case accountExpense:
		debitAccount, debitName = defaultExpenseGL, "Expense"
		if len(doc.LineItems) > 0 {
			first := doc.LineItems[0]
			debitAccount = orDefault(first.GLAccount, defaultExpenseGL)
			debitName = orDefault(first.Description, "Expense")
		}
	}

	costCenter := ""
	if len(doc.LineItems) > 0 {
		costCenter = doc.LineItems[0].CostCenter
	}
	text := orDefault(doc.Purpose, doc.Memo)

	return []GLLine{
		{
			LineNumber:    1,
			GLAccount:     debitAccount,
			GLAccountName: debitName,
			Debit:         amount,
			Credit:        decimal.Zero,
			CostCenter:    costCenter,
			Text:          text,
		},
		{
			LineNumber:    2,
			GLAccount:     mapping.credit.account,
			GLAccountName: mapping.credit.name,
			Debit:         decimal.Zero,
			Credit:        amount,
			Text:          text,
		},
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
