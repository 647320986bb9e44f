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

type dueTomorrowReader interface {
	ListActiveDueOn(ctx context.Context, day time.Time) ([]models.RentalTransaction, error)
}

// ReminderJobParams configure the due-tomorrow reminder scan.
type ReminderJobParams struct {
	Logger   *logger.Logger
	Rentals  dueTomorrowReader
	Notifier notify.Notifier
	Location *time.Location
	Now      func() time.Time
}

// NewReminderJob builds the job that notifies borrowers whose rentals are
// due exactly tomorrow. It looks strictly one day ahead; already-late
// rentals are the overdue job's business.
func NewReminderJob(params ReminderJobParams) (Job, error) {
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
	return &reminderJob{
		logg:     params.Logger,
		rentals:  params.Rentals,
		notifier: params.Notifier,
		loc:      loc,
		now:      now,
	}, nil
}

type reminderJob struct {
	logg     *logger.Logger
	rentals  dueTomorrowReader
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
}

func (j *reminderJob) Name() string { return "due-tomorrow-reminders" }

func (j *reminderJob) Run(ctx context.Context) error {
	today := engine.DateOnly(j.now().In(j.loc))
	tomorrow := today.AddDate(0, 0, 1)

	rows, err := j.rentals.ListActiveDueOn(ctx, tomorrow)
	if err != nil {
		return fmt.Errorf("list rentals due tomorrow: %w", err)
	}

	var errs []error
	sent := 0
	for _, txn := range rows {
		note := notify.Notification{
			Kind:     notify.KindDueTomorrow,
			ItemID:   txn.ItemID,
			ItemName: txn.ItemName,
			Qty:      txn.Qty,
			DueOn:    txn.DueOn,
		}
		// One unreachable borrower must not abort the batch.
		if err := j.notifier.Notify(ctx, txn.UserID, note); err != nil {
			logCtx := j.logg.WithUserID(ctx, txn.UserID)
			logCtx = j.logg.WithItemID(logCtx, txn.ItemID)
			j.logg.Error(logCtx, "due-tomorrow reminder failed", err)
			errs = append(errs, fmt.Errorf("notify user %d: %w", txn.UserID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due_on":    tomorrow.Format("2006-01-02"),
		"candidates": len(rows),
		"sent":      sent,
	})
	j.logg.Info(logCtx, "due-tomorrow reminder scan complete")
	return multierr.Combine(errs...)
}
