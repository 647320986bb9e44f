package cron

import (
	"context"
	"testing"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type fakeCounterStore struct {
	items    []models.Item
	repaired map[string]int
}

func (f *fakeCounterStore) ListAll(context.Context) ([]models.Item, error) {
	return f.items, nil
}

func (f *fakeCounterStore) SetAvailable(_ context.Context, itemID string, qty int) (bool, error) {
	if f.repaired == nil {
		f.repaired = make(map[string]int)
	}
	f.repaired[itemID] = qty
	return true, nil
}

type fakeOutstandingReader struct {
	totals map[string]int
}

func (f *fakeOutstandingReader) ActiveQtyByItem(context.Context) (map[string]int, error) {
	return f.totals, nil
}

func TestReconcileJobRepairsDrift(t *testing.T) {
	store := &fakeCounterStore{items: []models.Item{
		{ID: "CAB001", TotalQty: 10, AvailableQty: 8},
		{ID: "MIC001", TotalQty: 4, AvailableQty: 4},
		{ID: "SPK001", TotalQty: 2, AvailableQty: 2},
	}}
	// CAB001 is consistent (10 - 2 = 8); MIC001 drifted (4 outstanding but
	// counter untouched); SPK001 over-rented out of band.
	reader := &fakeOutstandingReader{totals: map[string]int{
		"cab001": 2,
		"mic001": 4,
		"spk001": 5,
	}}

	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Items:   store,
		Rentals: reader,
	})
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.repaired) != 2 {
		t.Fatalf("expected 2 repairs, got %v", store.repaired)
	}
	if got := store.repaired["MIC001"]; got != 0 {
		t.Fatalf("expected MIC001 repaired to 0, got %d", got)
	}
	// The expected value floors at zero even when the ledger exceeds total.
	if got := store.repaired["SPK001"]; got != 0 {
		t.Fatalf("expected SPK001 floored at 0, got %d", got)
	}
}

func TestReconcileJobNoDriftNoWrites(t *testing.T) {
	store := &fakeCounterStore{items: []models.Item{
		{ID: "CAB001", TotalQty: 10, AvailableQty: 10},
	}}
	reader := &fakeOutstandingReader{totals: map[string]int{}}

	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Items:   store,
		Rentals: reader,
	})
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.repaired) != 0 {
		t.Fatalf("expected no repairs, got %v", store.repaired)
	}
}
