package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Recorder receives invoice lifecycle events for metrics.
type Recorder interface {
	InvoiceCreated()
	InvoiceDeleted()
	StatusChanged(status string)
	OverdueMarked(n int)
}

type noopRecorder struct{}

func (noopRecorder) InvoiceCreated()      {}
func (noopRecorder) InvoiceDeleted()      {}
func (noopRecorder) StatusChanged(string) {}
func (noopRecorder) OverdueMarked(int)    {}

// Service handles invoice business logic.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	recorder Recorder
}

// NewService builds Service instance. logger and recorder may be nil.
func NewService(repo Repository, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{repo: repo, logger: logger, recorder: recorder}
}

// Create stores a new invoice from a client draft.
func (s *Service) Create(ctx context.Context, draft Invoice) (*Invoice, error) {
	inv, err := s.repo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.recorder.InvoiceCreated()
	s.logger.Info("invoice created",
		slog.String("id", inv.ID),
		slog.String("number", inv.InvoiceNumber),
		slog.Float64("total", inv.Total),
	)
	return inv, nil
}

// List returns invoices newest first, optionally restricted to one status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status == "" {
		return all, nil
	}
	if !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	out := make([]Invoice, 0, len(all))
	for _, inv := range all {
		if inv.Status == filter.Status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Get returns one invoice or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial patch. Status changes are not restricted.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Invoice, error) {
	inv, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if status, ok := patch.Status(); ok {
		s.recorder.StatusChanged(string(status))
		s.logger.Info("invoice status changed", slog.String("id", id), slog.String("status", string(status)))
	}
	return inv, nil
}

// UpdateStatus is Update with a status-only patch.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Invoice, error) {
	return s.Update(ctx, id, StatusPatch(status))
}

// Delete removes an invoice. Missing ids are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.InvoiceDeleted()
	s.logger.Info("invoice deleted", slog.String("id", id))
	return nil
}

// MarkOverdue moves sent invoices whose due date is before asOf's day to
// overdue and returns how many changed. Invoices in other states are left alone.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, inv := range all {
		if inv.Status != StatusSent || !inv.PastDue(asOf) {
			continue
		}
		if _, err := s.repo.Update(ctx, inv.ID, StatusPatch(StatusOverdue)); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return marked, fmt.Errorf("invoices: mark %s overdue: %w", inv.ID, err)
		}
		marked++
		s.logger.Info("invoice overdue",
			slog.String("id", inv.ID),
			slog.String("number", inv.InvoiceNumber),
			slog.String("due_date", inv.DueDate),
		)
	}
	s.recorder.OverdueMarked(marked)
	return marked, nil
}
