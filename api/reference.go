/*
reference.go - Static reference data endpoints

PURPOSE:
  Serves the lookup tables the request forms depend on: companies,
  banks, departments, cost centers, expense types, and payment methods.
  The data is fixed at build time, matching the source dataset the
  engine simulates against.

SEE ALSO:
  - ledger/posting.go: Company table and code resolution
  - server.go: Route registration
*/
package api

import (
	"net/http"

	"github.com/meridian/finrequest/ledger"
)

// Bank is a payee bank option.
type Bank struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Banks is the static bank table.
var Banks = []Bank{
	{ID: "bank-1", Name: "Bangkok Bank", Code: "BBL"},
	{ID: "bank-2", Name: "Kasikorn Bank", Code: "KBANK"},
	{ID: "bank-3", Name: "Siam Commercial Bank", Code: "SCB"},
	{ID: "bank-4", Name: "TMBThanachart Bank", Code: "TTB"},
}

// Department is an organizational unit option.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Departments is the static department table.
var Departments = []Department{
	{ID: "dept-1", Name: "Finance"},
	{ID: "dept-2", Name: "IT"},
	{ID: "dept-3", Name: "Operations"},
	{ID: "dept-4", Name: "Marine Operations"},
	{ID: "dept-5", Name: "HR"},
	{ID: "dept-6", Name: "Procurement"},
	{ID: "dept-7", Name: "Legal"},
	{ID: "dept-8", Name: "Administration"},
}

// CostCenter is a WBS / cost center option.
type CostCenter struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CostCenters is the static cost center table.
var CostCenters = []CostCenter{
	{Code: "CC1001", Description: "Corporate Administration"},
	{Code: "CC1002", Description: "Finance & Accounting"},
	{Code: "CC2001", Description: "IT Operations"},
	{Code: "CC3001", Description: "Marine Operations"},
	{Code: "CC4001", Description: "Logistics & Warehouse"},
	{Code: "CC5001", Description: "Procurement & Supply Chain"},
}

// ExpenseType is a claimable expense category.
type ExpenseType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ExpenseTypes is the static expense type table.
var ExpenseTypes = []ExpenseType{
	{ID: "toll", Label: "Toll"},
	{ID: "fuel", Label: "Fuel"},
	{ID: "transportMileage", Label: "Transport / Mileage"},
	{ID: "meals", Label: "Meals"},
	{ID: "accommodation", Label: "Accommodation"},
	{ID: "certification", Label: "Certification"},
	{ID: "parking", Label: "Parking"},
	{ID: "communication", Label: "Communication"},
}

// PaymentMethod is a disbursement channel option.
type PaymentMethod struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PaymentMethods is the static payment method table.
var PaymentMethods = []PaymentMethod{
	{ID: "transfer", Label: "Bank Transfer"},
	{ID: "companyCheque", Label: "Company Cheque"},
	{ID: "cashierCheque", Label: "Cashier Cheque"},
	{ID: "directDebit", Label: "Direct Debit"},
	{ID: "cash", Label: "Cash"},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListCompanies returns the company table used for company codes.
func (h *Handler) ListCompanies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ledger.Companies)
}

// ListBanks returns the payee bank table.
func (h *Handler) ListBanks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Banks)
}

// ListDepartments returns the department table.
func (h *Handler) ListDepartments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Departments)
}

// ListCostCenters returns the cost center table.
func (h *Handler) ListCostCenters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CostCenters)
}

// ListExpenseTypes returns the expense category table.
func (h *Handler) ListExpenseTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ExpenseTypes)
}

// ListPaymentMethods returns the payment method table.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PaymentMethods)
}
