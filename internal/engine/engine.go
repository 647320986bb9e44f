package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/ledger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Availability is the result of an availability check. Item is nil when the
// ID matched nothing; callers must branch on that before reading Qty.
type Availability struct {
	Available bool
	Qty       int
	Item      *models.Item
}

// ReserveInput carries everything needed to confirm a rental.
type ReserveInput struct {
	ItemID         string `validate:"required"`
	Qty            int    `validate:"min=1"`
	DurationDays   int    `validate:"min=1"`
	UserID         int64  `validate:"required"`
	BorrowerName   string `validate:"required"`
	ChatHandle     string
	PickupPhotoRef string `validate:"required"`
}

// Params configure the engine.
type Params struct {
	Logger       *logger.Logger
	Tx           txRunner
	Items        inventory.Repository
	Rentals      ledger.Repository
	Metrics      *metrics.EngineMetrics
	MaxQuantity  int
	Location     *time.Location
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Engine owns the availability counter and the rental ledger. Every
// decrement goes through a conditional write so two users can never both
// take the last unit, and every increment is clamped at the item's total.
type Engine struct {
	logg         *logger.Logger
	tx           txRunner
	items        inventory.Repository
	rentals      ledger.Repository
	metrics      *metrics.EngineMetrics
	validate     *validator.Validate
	maxQuantity  int
	loc          *time.Location
	storeTimeout time.Duration
	now          func() time.Time
}

const defaultMaxQuantity = 50

// New builds the engine.
func New(params Params) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Rentals == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	maxQty := params.MaxQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxQuantity
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		logg:         params.Logger,
		tx:           params.Tx,
		items:        params.Items,
		rentals:      params.Rentals,
		metrics:      params.Metrics,
		validate:     validator.New(),
		maxQuantity:  maxQty,
		loc:          loc,
		storeTimeout: params.StoreTimeout,
		now:          now,
	}, nil
}

// CheckAvailability looks up the item by case-insensitive ID and reports
// whether any units remain. Absence is a business outcome, not an error.
func (e *Engine) CheckAvailability(ctx context.Context, itemID string) (Availability, error) {
	ctx, cancel := e.boundStoreCall(ctx)
	defer cancel()

	item, err := e.items.FindByID(ctx, itemID)
	if err != nil {
		return Availability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up item")
	}
	if item == nil {
		return Availability{}, nil
	}
	return Availability{
		Available: item.AvailableQty > 0,
		Qty:       item.AvailableQty,
		Item:      item,
	}, nil
}

// Reserve decrements availability and appends the ACTIVE ledger row in one
// transaction. The decrement's stock guard runs inside the same statement
// as the write, so the re-check-before-write the flow performs here cannot
// be outrun by a concurrent renter: whoever commits first wins, the other
// gets ErrNoLongerAvailable and must start over.
func (e *Engine) Reserve(ctx context.Context, input ReserveInput) (*models.RentalTransaction, error) {
	if err := e.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "invalid reservation input")
	}
	if input.Qty > e.maxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput,
			fmt.Sprintf("quantity %d exceeds the per-rental ceiling of %d", input.Qty, e.maxQuantity))
	}

	ctx, cancel := e.boundStoreCall(ctx)
	defer cancel()

	start := e.now().In(e.loc)
	txn := &models.RentalTransaction{
		ID:             uuid.New(),
		BorrowerName:   input.BorrowerName,
		ChatHandle:     input.ChatHandle,
		UserID:         input.UserID,
		ItemID:         input.ItemID,
		Qty:            input.Qty,
		StartedAt:      start,
		DueOn:          DateOnly(start.AddDate(0, 0, input.DurationDays)),
		Status:         enums.RentalStatusActive,
		PickupPhotoRef: input.PickupPhotoRef,
	}

	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := e.items.WithTx(tx)
		rentals := e.rentals.WithTx(tx)

		item, err := items.FindByID(ctx, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %s not found", input.ItemID))
		}
		txn.ItemID = item.ID
		txn.ItemName = item.Name

		ok, err := items.DecrementAvailable(ctx, item.ID, input.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement availability")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNoLongerAvailable,
				fmt.Sprintf("item %s has fewer than %d units left", item.ID, input.Qty))
		}

		if err := rentals.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append rental transaction")
		}
		return nil
	})
	if err != nil {
		e.recordReservation(err)
		return nil, err
	}
	e.recordReservation(nil)

	logCtx := e.logg.WithUserID(ctx, input.UserID)
	logCtx = e.logg.WithItemID(logCtx, txn.ItemID)
	logCtx = e.logg.WithField(logCtx, "qty", input.Qty)
	e.logg.Info(logCtx, "rental reserved")
	return txn, nil
}

// Release marks the transaction returned and restocks its quantity. A
// vanished item (removed from inventory after the rental began) is logged
// and otherwise ignored: recording that the equipment came back must never
// fail because the restock target is gone.
func (e *Engine) Release(ctx context.Context, txnID uuid.UUID, returnPhotoRef string) (*models.RentalTransaction, error) {
	if txnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "transaction id required")
	}

	ctx, cancel := e.boundStoreCall(ctx)
	defer cancel()

	var returned *models.RentalTransaction
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := e.items.WithTx(tx)
		rentals := e.rentals.WithTx(tx)

		txn, err := rentals.FindByID(ctx, txnID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up rental transaction")
		}
		if txn == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("rental transaction %s not found", txnID))
		}
		if txn.Status == enums.RentalStatusReturned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "rental already returned")
		}

		returnedAt := e.now().In(e.loc)
		ok, err := rentals.MarkReturned(ctx, txn.ID, returnedAt, returnPhotoRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark rental returned")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "rental already returned")
		}

		restocked, err := items.IncrementAvailable(ctx, txn.ItemID, txn.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock item")
		}
		if !restocked {
			warnCtx := e.logg.WithItemID(ctx, txn.ItemID)
			e.logg.Warn(warnCtx, "returned item no longer exists in inventory; restock skipped")
		}

		txn.Status = enums.RentalStatusReturned
		txn.ReturnedAt = &returnedAt
		txn.ReturnPhotoRef = returnPhotoRef
		returned = txn
		return nil
	})
	if err != nil {
		e.recordReturn(err)
		return nil, err
	}
	e.recordReturn(nil)

	logCtx := e.logg.WithUserID(ctx, returned.UserID)
	logCtx = e.logg.WithItemID(logCtx, returned.ItemID)
	e.logg.Info(logCtx, "rental returned")
	return returned, nil
}

// UserHasOverdue returns the user's earliest-due overdue rental, if any.
// The earliest due date wins so the answer does not depend on ledger
// insertion order.
func (e *Engine) UserHasOverdue(ctx context.Context, userID int64) (bool, *models.RentalTransaction, error) {
	ctx, cancel := e.boundStoreCall(ctx)
	defer cancel()

	rows, err := e.rentals.ListActiveByUser(ctx, userID)
	if err != nil {
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active rentals")
	}
	today := DateOnly(e.now().In(e.loc))
	for i := range rows {
		if overdue, _ := ComputeOverdue(today, rows[i]); overdue {
			return true, &rows[i], nil
		}
	}
	return false, nil, nil
}

// ActiveRentals lists the user's outstanding rentals, earliest due first.
func (e *Engine) ActiveRentals(ctx context.Context, userID int64) ([]models.RentalTransaction, error) {
	ctx, cancel := e.boundStoreCall(ctx)
	defer cancel()

	rows, err := e.rentals.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active rentals")
	}
	return rows, nil
}

// Today returns the current date in the engine's timezone.
func (e *Engine) Today() time.Time {
	return DateOnly(e.now().In(e.loc))
}

func (e *Engine) boundStoreCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

func (e *Engine) recordReservation(err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncReservation(outcomeLabel(err))
}

func (e *Engine) recordReturn(err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncReturn(outcomeLabel(err))
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeNoLongerAvailable:
			return "conflict"
		case pkgerrors.CodeNotFound:
			return "not_found"
		case pkgerrors.CodeStateConflict:
			return "state_conflict"
		}
	}
	return "error"
}
