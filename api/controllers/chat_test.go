package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/flow"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/session"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type stubEngine struct{}

func (stubEngine) CheckAvailability(ctx context.Context, itemID string) (engine.Availability, error) {
	return engine.Availability{}, nil
}

func (stubEngine) Reserve(ctx context.Context, input engine.ReserveInput) (*models.RentalTransaction, error) {
	return nil, nil
}

func (stubEngine) Release(ctx context.Context, txnID uuid.UUID, returnPhotoRef string) (*models.RentalTransaction, error) {
	return nil, nil
}

func (stubEngine) UserHasOverdue(ctx context.Context, userID int64) (bool, *models.RentalTransaction, error) {
	return false, nil, nil
}

func (stubEngine) ActiveRentals(ctx context.Context, userID int64) ([]models.RentalTransaction, error) {
	return nil, nil
}

func newChatHandler(t *testing.T) (http.HandlerFunc, session.Store) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	sessions, err := session.NewStore(config.SessionConfig{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	flows, err := flow.NewManager(flow.ManagerParams{
		Logger: logg,
		Engine: stubEngine{},
		Limits: flow.Limits{MaxQuantity: 50, MaxDurationDays: 90},
	})
	if err != nil {
		t.Fatalf("flow manager: %v", err)
	}
	cfg := &config.Config{Telegram: config.TelegramConfig{Password: "opensesame"}}
	return ChatEvent(flows, sessions, cfg, logg), sessions
}

func postEvent(t *testing.T, handler http.HandlerFunc, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/events", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatEventRejectsUnverifiedUser(t *testing.T) {
	handler, _ := newChatHandler(t)

	rec := postEvent(t, handler, map[string]any{"user_id": 42, "kind": "start_rental"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != "UNVERIFIED" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestChatEventWrongPassword(t *testing.T) {
	handler, sessions := newChatHandler(t)

	rec := postEvent(t, handler, map[string]any{"user_id": 42, "kind": "verify", "text": "nope"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	verified, err := sessions.IsVerified(context.Background(), 42)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if verified {
		t.Fatal("wrong password must not verify the user")
	}
}

func TestChatEventVerifyThenStartRental(t *testing.T) {
	handler, _ := newChatHandler(t)

	rec := postEvent(t, handler, map[string]any{"user_id": 42, "kind": "verify", "text": "opensesame"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = postEvent(t, handler, map[string]any{"user_id": 42, "kind": "start_rental", "name": "Alex"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data flow.Output `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Kind != flow.OutPromptItemID {
		t.Fatalf("unexpected output kind %q", envelope.Data.Kind)
	}
}

func TestChatEventUnknownKind(t *testing.T) {
	handler, _ := newChatHandler(t)

	rec := postEvent(t, handler, map[string]any{"user_id": 42, "kind": "dance"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestChatEventMissingUserID(t *testing.T) {
	handler, _ := newChatHandler(t)

	rec := postEvent(t, handler, map[string]any{"kind": "start_rental"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
