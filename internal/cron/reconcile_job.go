package cron

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type itemCounterStore interface {
	ListAll(ctx context.Context) ([]models.Item, error)
	SetAvailable(ctx context.Context, itemID string, qty int) (bool, error)
}

type outstandingReader interface {
	ActiveQtyByItem(ctx context.Context) (map[string]int, error)
}

// ReconcileJobParams configure the inventory counter reconciliation.
type ReconcileJobParams struct {
	Logger  *logger.Logger
	Items   itemCounterStore
	Rentals outstandingReader
}

// NewReconcileJob builds the job that recomputes each item's available
// counter from the ledger (total minus outstanding) and repairs any drift.
// Drift can accumulate from clamped restocks and out-of-band edits; the
// ledger is the source of truth.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Rentals == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &reconcileJob{
		logg:    params.Logger,
		items:   params.Items,
		rentals: params.Rentals,
	}, nil
}

type reconcileJob struct {
	logg    *logger.Logger
	items   itemCounterStore
	rentals outstandingReader
}

func (j *reconcileJob) Name() string { return "inventory-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	items, err := j.items.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	outstanding, err := j.rentals.ActiveQtyByItem(ctx)
	if err != nil {
		return fmt.Errorf("sum outstanding quantities: %w", err)
	}

	var errs []error
	repaired := 0
	for _, item := range items {
		expected := item.TotalQty - outstanding[strings.ToLower(item.ID)]
		if expected < 0 {
			expected = 0
		}
		if item.AvailableQty == expected {
			continue
		}
		logCtx := j.logg.WithItemID(ctx, item.ID)
		logCtx = j.logg.WithFields(logCtx, map[string]any{
			"counter":  item.AvailableQty,
			"expected": expected,
		})
		j.logg.Warn(logCtx, "available counter drifted from ledger")

		if _, err := j.items.SetAvailable(ctx, item.ID, expected); err != nil {
			j.logg.Error(logCtx, "counter repair failed", err)
			errs = append(errs, fmt.Errorf("repair item %s: %w", item.ID, err))
			continue
		}
		repaired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"items":    len(items),
		"repaired": repaired,
	})
	j.logg.Info(logCtx, "inventory reconciliation complete")
	return multierr.Combine(errs...)
}
