package invoices

import (
	"time"
)

// Status enumerates invoice lifecycle states. Any state may follow any other.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// DateLayout is the calendar-date format used by invoiceDate and dueDate.
const DateLayout = "2006-01-02"

// LineItem is one billable row.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Rate        float64 `json:"rate" validate:"gte=0"`
}

// Invoice is the persisted record stored under invoice:<id>.
type Invoice struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	ClientName    string     `json:"clientName" validate:"required"`
	ClientEmail   string     `json:"clientEmail" validate:"omitempty,email"`
	ClientAddress string     `json:"clientAddress"`
	InvoiceDate   string     `json:"invoiceDate" validate:"required,datetime=2006-01-02"`
	DueDate       string     `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	LineItems     []LineItem `json:"lineItems" validate:"required,min=1,dive"`
	Subtotal      float64    `json:"subtotal"`
	Total         float64    `json:"total"`
	Status        Status     `json:"status" validate:"required,oneof=draft sent paid overdue"`
	PaymentTerms  string     `json:"paymentTerms"`
	Notes         string     `json:"notes"`
	BankName      string     `json:"bankName"`
	AccountNumber string     `json:"accountNumber"`
	AccountOwner  string     `json:"accountOwner"`
	BranchCode    string     `json:"branchCode"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Due parses DueDate. ok is false when no due date is set or it cannot be parsed.
func (inv Invoice) Due() (time.Time, bool) {
	if inv.DueDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, inv.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PastDue reports whether the invoice was due before the calendar day of asOf.
func (inv Invoice) PastDue(asOf time.Time) bool {
	due, ok := inv.Due()
	if !ok {
		return false
	}
	y, m, d := asOf.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
}
