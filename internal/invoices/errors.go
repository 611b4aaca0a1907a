package invoices

import (
	"fmt"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

var (
	// ErrNotFound indicates no invoice is stored under the requested id.
	ErrNotFound = fmt.Errorf("invoice %w", httpx.ErrNotFound)
	// ErrValidation indicates the record fails the invoice schema.
	ErrValidation = fmt.Errorf("invoice %w", httpx.ErrValidation)
)

// notFoundMessage is the client-facing error for missing invoices.
const notFoundMessage = "Invoice not found"
