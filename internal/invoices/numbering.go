package invoices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

// NumberingMode selects how invoice numbers are allocated.
type NumberingMode string

const (
	// NumberingSequence uses an atomic counter in the store.
	NumberingSequence NumberingMode = "sequence"
	// NumberingCount counts existing invoices and adds one. Concurrent creates
	// can receive the same number, and deletes lead to reuse.
	NumberingCount NumberingMode = "count"
)

const (
	DefaultNumberPrefix = "WS-"
	DefaultNumberWidth  = 5

	sequenceName = "invoice"
)

// Numbering formats and allocates invoice numbers.
type Numbering struct {
	Mode   NumberingMode
	Prefix string
	Width  int
}

// Format renders seq as prefix + zero-padded digits.
func (n Numbering) Format(seq int64) string {
	return fmt.Sprintf("%s%0*d", n.Prefix, n.Width, seq)
}

// Parse returns the sequence value of a number produced by Format.
func (n Numbering) Parse(number string) (int64, bool) {
	digits, ok := strings.CutPrefix(number, n.Prefix)
	if !ok || digits == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

func (n Numbering) withDefaults() Numbering {
	if n.Mode == "" {
		n.Mode = NumberingSequence
	}
	if n.Prefix == "" {
		n.Prefix = DefaultNumberPrefix
	}
	if n.Width <= 0 {
		n.Width = DefaultNumberWidth
	}
	return n
}

// ParseNumberingMode validates a configured mode string.
func ParseNumberingMode(s string) (NumberingMode, error) {
	switch NumberingMode(s) {
	case "", NumberingSequence:
		return NumberingSequence, nil
	case NumberingCount:
		return NumberingCount, nil
	}
	return "", fmt.Errorf("invoices: unknown numbering mode %q", s)
}

type allocator struct {
	numbering Numbering
	seq       kv.Sequencer
	count     func(context.Context) (int, error)
	// highest returns the largest number already in use.
	highest   func(context.Context) (int64, error)
	seeded    atomic.Bool
}

// next returns the next sequence value. The store counter is seeded on first
// use from the highest number already stored, so numbering continues after
// data that was written in count mode even when some of it was deleted.
func (a *allocator) next(ctx context.Context) (int64, error) {
	if a.numbering.Mode == NumberingCount || a.seq == nil {
		n, err := a.count(ctx)
		if err != nil {
			return 0, err
		}
		return int64(n) + 1, nil
	}
	if !a.seeded.Load() {
		n, err := a.highest(ctx)
		if err != nil {
			return 0, err
		}
		if err := a.seq.SeedIfAbsent(ctx, sequenceName, n); err != nil {
			return 0, err
		}
		a.seeded.Store(true)
	}
	return a.seq.Next(ctx, sequenceName)
}
