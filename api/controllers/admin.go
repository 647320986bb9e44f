package controllers

import (
	"net/http"
	"strconv"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/responses"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/admin"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// userIDHeader carries the chat user behind the request. The chat adapter
// sets it from the platform identity, never from user input.
const userIDHeader = "X-User-ID"

// AdminStats serves ledger-wide rental statistics to configured admins.
func AdminStats(svc admin.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
		if err != nil || !cfg.Telegram.IsAdmin(userID) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnverified, "admin access required"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
