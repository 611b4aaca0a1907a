package invoices

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// Patch is a partial update: top-level invoice fields by JSON name. Fields
// not present keep their stored value; a JSON null clears the field.
type Patch map[string]json.RawMessage

// StatusPatch builds the patch used for status changes.
func StatusPatch(status Status) Patch {
	raw, _ := json.Marshal(status)
	return Patch{"status": raw}
}

// Status returns the status carried by the patch, if any.
func (p Patch) Status() (Status, bool) {
	raw, ok := p["status"]
	if !ok {
		return "", false
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Merge overlays p onto existing. id, createdAt, updatedAt and an already
// assigned invoiceNumber in p are ignored whatever their value. Totals are
// recomputed from the merged line items and updatedAt is set to now, or just
// after the previous value when the clock has not moved forward.
func (p Patch) Merge(existing Invoice, now time.Time) (Invoice, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: encode existing: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return Invoice{}, fmt.Errorf("invoices: decode existing: %w", err)
	}
	for k, v := range p {
		if p.ignores(k, existing) {
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: encode merged: %w", err)
	}

	var out Invoice
	if err := json.Unmarshal(merged, &out); err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", httpx.ErrMalformed, err)
	}

	fillLineItemIDs(out.LineItems)
	applyTotals(&out)

	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Nanosecond)
	}
	out.UpdatedAt = now
	return out, nil
}

func (Patch) ignores(field string, existing Invoice) bool {
	switch field {
	case "id", "createdAt", "updatedAt":
		return true
	case "invoiceNumber":
		return existing.InvoiceNumber != ""
	}
	return false
}
