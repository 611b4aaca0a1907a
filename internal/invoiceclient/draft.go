package invoiceclient

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/invoicer/internal/invoices"
)

// DefaultPaymentTerms prefills new drafts.
const DefaultPaymentTerms = "Payment due within 30 days"

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "R"

var amountPrinter = message.NewPrinter(language.English)

// NewDraft returns the blank form: dated today, one empty line, default terms.
func NewDraft(now time.Time) invoices.Invoice {
	return invoices.Invoice{
		InvoiceDate:  now.Format(invoices.DateLayout),
		LineItems:    []invoices.LineItem{{Quantity: 1, Rate: 0}},
		PaymentTerms: DefaultPaymentTerms,
		Status:       invoices.StatusDraft,
	}
}

// FormatAmount renders an amount with grouping and two decimals, e.g. R1,000.00.
func FormatAmount(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}
	return sign + CurrencySymbol + amountPrinter.Sprintf("%.2f", amount)
}
