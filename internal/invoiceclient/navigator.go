package invoiceclient

import (
	"context"
	"errors"

	"github.com/odyssey-erp/invoicer/internal/invoices"
)

// View is one of the three screens.
type View string

const (
	ViewList    View = "list"
	ViewForm    View = "form"
	ViewPreview View = "preview"
)

// ErrNoSelection is returned when the preview is shown with no invoice selected.
var ErrNoSelection = errors.New("invoiceclient: preview without a selected invoice")

// Navigator holds the current view and selection. There is no history: every
// transition replaces the current view.
type Navigator struct {
	client       *Client
	view         View
	selected     *invoices.Invoice
	newlyCreated bool
}

// NewNavigator starts on the list view.
func NewNavigator(client *Client) *Navigator {
	return &Navigator{client: client, view: ViewList}
}

// View returns the current view.
func (n *Navigator) View() View { return n.view }

// NewlyCreated reports whether the selection was just created from the form.
func (n *Navigator) NewlyCreated() bool { return n.newlyCreated }

// Selected returns the invoice for the preview. It fails with ErrNoSelection
// when nothing is selected.
func (n *Navigator) Selected() (invoices.Invoice, error) {
	if n.selected == nil {
		return invoices.Invoice{}, ErrNoSelection
	}
	return *n.selected, nil
}

// Load refreshes the list.
func (n *Navigator) Load(ctx context.Context) ([]invoices.Invoice, error) {
	return n.client.List(ctx)
}

// OpenForm switches to the form.
func (n *Navigator) OpenForm() {
	n.view = ViewForm
}

// Close returns to the list from the form or the preview.
func (n *Navigator) Close() {
	n.view = ViewList
}

// Submit creates the draft and previews the result. On failure the form stays open.
func (n *Navigator) Submit(ctx context.Context, draft invoices.Invoice) (*invoices.Invoice, error) {
	inv, err := n.client.Create(ctx, draft)
	if inv == nil {
		return nil, err
	}
	n.show(*inv, true)
	return inv, err
}

// Preview selects an existing invoice.
func (n *Navigator) Preview(inv invoices.Invoice) {
	n.show(inv, false)
}

// PreviewID selects a cached invoice by id.
func (n *Navigator) PreviewID(id string) error {
	inv, ok := n.client.Lookup(id)
	if !ok {
		return ErrNotFound
	}
	n.Preview(inv)
	return nil
}

// ChangeStatus updates an invoice and, when it is the selection, refreshes it.
func (n *Navigator) ChangeStatus(ctx context.Context, id string, status invoices.Status) (*invoices.Invoice, error) {
	inv, err := n.client.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if n.selected != nil && n.selected.ID == id {
		updated := *inv
		n.selected = &updated
	}
	return inv, nil
}

// Delete removes an invoice and clears the selection if it was selected.
func (n *Navigator) Delete(ctx context.Context, id string) error {
	if err := n.client.Delete(ctx, id); err != nil {
		return err
	}
	if n.selected != nil && n.selected.ID == id {
		n.selected = nil
		n.newlyCreated = false
		if n.view == ViewPreview {
			n.view = ViewList
		}
	}
	return nil
}

func (n *Navigator) show(inv invoices.Invoice, created bool) {
	n.selected = &inv
	n.newlyCreated = created
	n.view = ViewPreview
}
