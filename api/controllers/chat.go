package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/responses"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/flow"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/session"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// chatEvent is one inbound signal from whatever chat platform fronts the
// bot. The adapter translates platform updates into these and renders the
// structured outputs back into platform messages.
type chatEvent struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	PhotoRef string `json:"photo_ref"`
}

const verifyKind = "verify"

var eventKinds = map[string]flow.EventKind{
	"start_rental": flow.EventStartRental,
	"start_return": flow.EventStartReturn,
	"cancel":       flow.EventCancel,
	"text":         flow.EventText,
	"photo":        flow.EventPhoto,
}

// ChatEvent drives one user event through the verification gate and the
// conversation state machine.
func ChatEvent(flows *flow.Manager, sessions session.Store, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var evt chatEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "malformed chat event"))
			return
		}
		if evt.UserID == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInvalidInput, "user_id required"))
			return
		}

		if evt.Kind == verifyKind {
			if cfg.Telegram.Password == "" || evt.Text != cfg.Telegram.Password {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnverified, "wrong password"))
				return
			}
			if err := sessions.Verify(r.Context(), evt.UserID); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record verification"))
				return
			}
			responses.WriteSuccess(w, map[string]string{"status": "verified"})
			return
		}

		kind, ok := eventKinds[evt.Kind]
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInvalidInput, "unknown event kind "+evt.Kind))
			return
		}

		verified, err := sessions.IsVerified(r.Context(), evt.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check verification"))
			return
		}
		if !verified {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnverified, "verification required"))
			return
		}

		out := flows.Handle(r.Context(), evt.UserID, flow.Event{
			Kind:     kind,
			From:     flow.Profile{Name: evt.Name, Handle: evt.Handle},
			Text:     evt.Text,
			PhotoRef: evt.PhotoRef,
		})
		responses.WriteSuccess(w, out)
	}
}
