package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/notify"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type overdueReader interface {
	ListActiveDueBefore(ctx context.Context, day time.Time) ([]models.RentalTransaction, error)
}

// OverdueJobParams configure the overdue notice scan.
type OverdueJobParams struct {
	Logger   *logger.Logger
	Rentals  overdueReader
	Notifier notify.Notifier
	Location *time.Location
	Now      func() time.Time
}

// NewOverdueJob builds the job that notifies borrowers whose rentals are
// already past due, with the day count.
func NewOverdueJob(params OverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Rentals == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &overdueJob{
		logg:     params.Logger,
		rentals:  params.Rentals,
		notifier: params.Notifier,
		loc:      loc,
		now:      now,
	}, nil
}

type overdueJob struct {
	logg     *logger.Logger
	rentals  overdueReader
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
}

func (j *overdueJob) Name() string { return "overdue-notices" }

func (j *overdueJob) Run(ctx context.Context) error {
	today := engine.DateOnly(j.now().In(j.loc))

	rows, err := j.rentals.ListActiveDueBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("list overdue rentals: %w", err)
	}

	var errs []error
	sent := 0
	for _, txn := range rows {
		overdue, days := engine.ComputeOverdue(today, txn)
		if !overdue {
			continue
		}
		note := notify.Notification{
			Kind:        notify.KindOverdue,
			ItemID:      txn.ItemID,
			ItemName:    txn.ItemName,
			Qty:         txn.Qty,
			DueOn:       txn.DueOn,
			DaysOverdue: days,
		}
		if err := j.notifier.Notify(ctx, txn.UserID, note); err != nil {
			logCtx := j.logg.WithUserID(ctx, txn.UserID)
			logCtx = j.logg.WithItemID(logCtx, txn.ItemID)
			j.logg.Error(logCtx, "overdue notice failed", err)
			errs = append(errs, fmt.Errorf("notify user %d: %w", txn.UserID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue": len(rows),
		"sent":    sent,
	})
	j.logg.Info(logCtx, "overdue notice scan complete")
	return multierr.Combine(errs...)
}
