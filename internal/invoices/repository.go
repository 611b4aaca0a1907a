package invoices

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

// KeyPrefix namespaces invoice records in the store.
const KeyPrefix = "invoice:"

// Key returns the store key for an invoice id.
func Key(id string) string {
	return KeyPrefix + id
}

// Repository persists invoices in a key-value store.
type Repository interface {
	Create(ctx context.Context, draft Invoice) (*Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, id string, patch Patch) (*Invoice, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// RepositoryOptions configures NewRepository.
type RepositoryOptions struct {
	// Sequencer backs NumberingSequence. Without it numbering falls back to counting.
	Sequencer kv.Sequencer
	Numbering Numbering
	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

type repository struct {
	store     kv.Store
	numbers   *allocator
	numbering Numbering
	clock     func() time.Time
	newID     func() string
}

// NewRepository builds a Repository over store.
func NewRepository(store kv.Store, opts RepositoryOptions) Repository {
	r := &repository{
		store:     store,
		numbering: opts.Numbering.withDefaults(),
		clock:     opts.Clock,
		newID:     opts.NewID,
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	r.numbers = &allocator{numbering: r.numbering, seq: opts.Sequencer, count: r.Count, highest: r.highestNumber}
	return r
}

func (r *repository) Create(ctx context.Context, draft Invoice) (*Invoice, error) {
	inv := draft
	inv.LineItems = slices.Clone(draft.LineItems)
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	fillLineItemIDs(inv.LineItems)
	applyTotals(&inv)
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	if inv.InvoiceNumber == "" {
		seq, err := r.numbers.next(ctx)
		if err != nil {
			return nil, fmt.Errorf("invoices: allocate number: %w", err)
		}
		inv.InvoiceNumber = r.numbering.Format(seq)
	}

	now := r.clock()
	inv.ID = r.newID()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	if err := kv.SetJSON(ctx, r.store, Key(inv.ID), inv); err != nil {
		return nil, fmt.Errorf("invoices: save %s: %w", inv.ID, err)
	}
	return &inv, nil
}

// List returns all invoices, newest first. Equal timestamps are ordered by id.
func (r *repository) List(ctx context.Context) ([]Invoice, error) {
	raws, err := r.store.GetByPrefix(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("invoices: list: %w", err)
	}
	out := make([]Invoice, 0, len(raws))
	for _, raw := range raws {
		var inv Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("invoices: decode record: %w", err)
		}
		out = append(out, inv)
	}
	slices.SortFunc(out, func(a, b Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *repository) Get(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := kv.GetJSON(ctx, r.store, Key(id), &inv); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("invoices: get %s: %w", id, err)
	}
	return &inv, nil
}

func (r *repository) Update(ctx context.Context, id string, patch Patch) (*Invoice, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, err := patch.Merge(*existing, r.clock())
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if err := kv.SetJSON(ctx, r.store, Key(id), merged); err != nil {
		return nil, fmt.Errorf("invoices: save %s: %w", id, err)
	}
	return &merged, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Key(id)); err != nil {
		return fmt.Errorf("invoices: delete %s: %w", id, err)
	}
	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	raws, err := r.store.GetByPrefix(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("invoices: count: %w", err)
	}
	return len(raws), nil
}

// highestNumber returns max(count, largest parsed invoice number).
func (r *repository) highestNumber(ctx context.Context) (int64, error) {
	all, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	highest := int64(len(all))
	for _, inv := range all {
		if seq, ok := r.numbering.Parse(inv.InvoiceNumber); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

func fillLineItemIDs(items []LineItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
}
