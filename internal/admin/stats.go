package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

const topItemLimit = 5

type ledgerReader interface {
	ListAll(ctx context.Context) ([]models.RentalTransaction, error)
}

// ItemCount is one entry in the most-rented ranking.
type ItemCount struct {
	ItemID   string
	ItemName string
	Rentals  int
}

// Stats summarizes the whole rental ledger for admins.
type Stats struct {
	TotalRentals     int
	Active           int
	Returned         int
	Overdue          int
	UniqueBorrowers  int
	OnTimeReturnRate float64
	TopItems         []ItemCount
}

// Service computes ledger statistics.
type Service interface {
	Stats(ctx context.Context) (Stats, error)
}

// ServiceParams configure the admin service.
type ServiceParams struct {
	Logger   *logger.Logger
	Rentals  ledgerReader
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	logg    *logger.Logger
	rentals ledgerReader
	loc     *time.Location
	now     func() time.Time
}

// NewService builds the admin service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Rentals == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:    params.Logger,
		rentals: params.Rentals,
		loc:     loc,
		now:     now,
	}, nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.rentals.ListAll(ctx)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rental transactions")
	}

	today := engine.DateOnly(s.now().In(s.loc))
	borrowers := make(map[int64]struct{})
	itemRentals := make(map[string]*ItemCount)
	onTime := 0
	stats := Stats{TotalRentals: len(rows)}

	for _, txn := range rows {
		borrowers[txn.UserID] = struct{}{}
		count, ok := itemRentals[txn.ItemID]
		if !ok {
			count = &ItemCount{ItemID: txn.ItemID, ItemName: txn.ItemName}
			itemRentals[txn.ItemID] = count
		}
		count.Rentals++

		switch txn.Status {
		case enums.RentalStatusActive:
			stats.Active++
			if overdue, _ := engine.ComputeOverdue(today, txn); overdue {
				stats.Overdue++
			}
		case enums.RentalStatusReturned:
			stats.Returned++
			if txn.ReturnedAt != nil && !engine.DateOnly(txn.ReturnedAt.In(s.loc)).After(engine.DateOnly(txn.DueOn)) {
				onTime++
			}
		}
	}

	stats.UniqueBorrowers = len(borrowers)
	if stats.Returned > 0 {
		stats.OnTimeReturnRate = float64(onTime) / float64(stats.Returned)
	}

	ranking := make([]ItemCount, 0, len(itemRentals))
	for _, count := range itemRentals {
		ranking = append(ranking, *count)
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Rentals != ranking[j].Rentals {
			return ranking[i].Rentals > ranking[j].Rentals
		}
		return ranking[i].ItemID < ranking[j].ItemID
	})
	if len(ranking) > topItemLimit {
		ranking = ranking[:topItemLimit]
	}
	stats.TopItems = ranking
	return stats, nil
}
