package notify

import (
	"context"
	"time"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// Kind distinguishes the scheduled notices sent to borrowers.
type Kind string

const (
	KindDueTomorrow Kind = "due_tomorrow"
	KindOverdue     Kind = "overdue"
)

// Notification is the structured payload handed to the delivery layer. The
// scan jobs never format chat text; they only describe what happened.
type Notification struct {
	Kind        Kind
	ItemID      string
	ItemName    string
	Qty         int
	DueOn       time.Time
	DaysOverdue int
}

// Notifier delivers a notification to a single chat user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, note Notification) error
}

// LogNotifier writes notifications to the log instead of a chat platform.
// Used when no bot transport is configured, and in the reminder worker's
// dry-run mode.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, userID int64, note Notification) error {
	if n.logg == nil {
		return nil
	}
	logCtx := n.logg.WithUserID(ctx, userID)
	logCtx = n.logg.WithFields(logCtx, map[string]any{
		"kind":         string(note.Kind),
		"item_id":      note.ItemID,
		"item_name":    note.ItemName,
		"qty":          note.Qty,
		"due_on":       note.DueOn.Format("2006-01-02"),
		"days_overdue": note.DaysOverdue,
	})
	n.logg.Info(logCtx, "notification emitted")
	return nil
}
