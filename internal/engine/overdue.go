package engine

import (
	"time"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
)

// DateOnly truncates t to midnight in its own location. Due dates and
// overdue math compare whole calendar days, never clock times.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeOverdue reports whether an outstanding rental is past due as of
// today, and by how many whole days. A rental due today is not overdue;
// one due yesterday is overdue by 1. Returned rentals are never overdue
// regardless of when they came back.
func ComputeOverdue(today time.Time, txn models.RentalTransaction) (bool, int) {
	if txn.Status != enums.RentalStatusActive {
		return false, 0
	}
	due := DateOnly(txn.DueOn)
	today = DateOnly(today)
	if !due.Before(today) {
		return false, 0
	}
	days := int(today.Sub(due).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return true, days
}
