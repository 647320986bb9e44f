package flow

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
)

// State identifies where a user's conversation currently sits. Idle doubles
// as the terminal state: every flow ends by going back to it.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingItemID       State = "awaiting_item_id"
	StateAwaitingQuantity     State = "awaiting_quantity"
	StateAwaitingDuration     State = "awaiting_duration"
	StateAwaitingCustomDays   State = "awaiting_custom_days"
	StateAwaitingPickupPhoto  State = "awaiting_pickup_photo"
	StateAwaitingReturnChoice State = "awaiting_return_choice"
	StateAwaitingReturnPhoto  State = "awaiting_return_photo"
)

// EventKind classifies inbound signals from the chat layer.
type EventKind string

const (
	EventStartRental EventKind = "start_rental"
	EventStartReturn EventKind = "start_return"
	EventCancel      EventKind = "cancel"
	EventText        EventKind = "text"
	EventPhoto       EventKind = "photo"
)

// Profile carries the sender's identity as the chat platform reports it.
type Profile struct {
	Name   string
	Handle string
}

// Event is one inbound signal. Text is set for EventText, PhotoRef for
// EventPhoto; start events carry the sender profile for the ledger record.
type Event struct {
	Kind     EventKind
	From     Profile
	Text     string
	PhotoRef string
}

// OutputKind classifies what the presentation layer should render next. The
// machine emits structured payloads only; wording belongs to the transport.
type OutputKind string

const (
	OutPromptItemID       OutputKind = "prompt_item_id"
	OutItemNotFound       OutputKind = "item_not_found"
	OutItemOutOfStock     OutputKind = "item_out_of_stock"
	OutPromptQuantity     OutputKind = "prompt_quantity"
	OutQuantityInvalid    OutputKind = "quantity_invalid"
	OutPromptDuration     OutputKind = "prompt_duration"
	OutPromptCustomDays   OutputKind = "prompt_custom_days"
	OutDurationInvalid    OutputKind = "duration_invalid"
	OutPromptPickupPhoto  OutputKind = "prompt_pickup_photo"
	OutRentalConfirmed    OutputKind = "rental_confirmed"
	OutNoLongerAvailable  OutputKind = "no_longer_available"
	OutOverdueBlocked     OutputKind = "overdue_blocked"
	OutPromptReturnChoice OutputKind = "prompt_return_choice"
	OutReturnInvalid      OutputKind = "return_choice_invalid"
	OutNoActiveRentals    OutputKind = "no_active_rentals"
	OutPromptReturnPhoto  OutputKind = "prompt_return_photo"
	OutReturnConfirmed    OutputKind = "return_confirmed"
	OutCancelled          OutputKind = "cancelled"
	OutFailure            OutputKind = "failure"
)

// Violation names which guard an invalid input tripped, so the
// presentation layer can word each rejection differently.
type Violation string

const (
	QuantityNotANumber   Violation = "qty_not_a_number"
	QuantityBelowMin     Violation = "qty_below_min"
	QuantityAboveAvail   Violation = "qty_above_available"
	QuantityAboveCeiling Violation = "qty_above_ceiling"
	DurationNotANumber   Violation = "duration_not_a_number"
	DurationOutOfRange   Violation = "duration_out_of_range"
	DurationNotAPreset   Violation = "duration_not_a_preset"
)

// Output is the machine's answer to one event.
type Output struct {
	Kind        OutputKind                 `json:"kind"`
	Item        *models.Item               `json:"item,omitempty"`
	Qty         int                        `json:"qty,omitempty"`
	Available   int                        `json:"available,omitempty"`
	MaxQty      int                        `json:"max_qty,omitempty"`
	MaxDays     int                        `json:"max_days,omitempty"`
	Presets     []int                      `json:"presets,omitempty"`
	Violation   Violation                  `json:"violation,omitempty"`
	Transaction *models.RentalTransaction  `json:"transaction,omitempty"`
	Rentals     []models.RentalTransaction `json:"rentals,omitempty"`
	ErrorCode   pkgerrors.Code             `json:"error_code,omitempty"`
}

// DurationPresets are the quick-pick rental lengths, in days.
var DurationPresets = []int{1, 3, 7, 14, 30}

// RentalEngine is the slice of the availability engine the flow drives.
type RentalEngine interface {
	CheckAvailability(ctx context.Context, itemID string) (engine.Availability, error)
	Reserve(ctx context.Context, input engine.ReserveInput) (*models.RentalTransaction, error)
	Release(ctx context.Context, txnID uuid.UUID, returnPhotoRef string) (*models.RentalTransaction, error)
	UserHasOverdue(ctx context.Context, userID int64) (bool, *models.RentalTransaction, error)
	ActiveRentals(ctx context.Context, userID int64) ([]models.RentalTransaction, error)
}

// Limits are the flow's validation ceilings.
type Limits struct {
	MaxQuantity     int
	MaxDurationDays int
}

type rentalDraft struct {
	item         *models.Item
	availability int
	qty          int
	durationDays int
	borrower     Profile
}

// Machine runs one user's conversation. It holds no persisted state of its
// own; everything it accumulates before the terminal write is flow-local
// and vanishes on cancel or restart.
type Machine struct {
	userID  int64
	eng     RentalEngine
	limits  Limits
	state   State
	draft   rentalDraft
	options []models.RentalTransaction
	chosen  *models.RentalTransaction
}

// NewMachine builds an idle machine for one user.
func NewMachine(userID int64, eng RentalEngine, limits Limits) *Machine {
	return &Machine{userID: userID, eng: eng, limits: limits, state: StateIdle}
}

// CurrentState reports the machine's position.
func (m *Machine) CurrentState() State {
	return m.state
}

// Handle applies one event and returns what to render next. Start signals
// restart their flow from the top regardless of the current state, and
// cancel ends any flow immediately; neither ever touches persisted data.
func (m *Machine) Handle(ctx context.Context, evt Event) Output {
	switch evt.Kind {
	case EventCancel:
		m.reset()
		return Output{Kind: OutCancelled}
	case EventStartRental:
		return m.startRental(ctx, evt)
	case EventStartReturn:
		return m.startReturn(ctx)
	}

	switch m.state {
	case StateAwaitingItemID:
		return m.handleItemID(ctx, evt)
	case StateAwaitingQuantity:
		return m.handleQuantity(evt)
	case StateAwaitingDuration:
		return m.handleDuration(evt)
	case StateAwaitingCustomDays:
		return m.handleCustomDays(evt)
	case StateAwaitingPickupPhoto:
		return m.handlePickupPhoto(ctx, evt)
	case StateAwaitingReturnChoice:
		return m.handleReturnChoice(evt)
	case StateAwaitingReturnPhoto:
		return m.handleReturnPhoto(ctx, evt)
	default:
		return Output{Kind: OutCancelled}
	}
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.draft = rentalDraft{}
	m.options = nil
	m.chosen = nil
}

func (m *Machine) startRental(ctx context.Context, evt Event) Output {
	m.reset()
	blocked, overdueTxn, err := m.eng.UserHasOverdue(ctx, m.userID)
	if err != nil {
		return failureOutput(err)
	}
	if blocked {
		return Output{Kind: OutOverdueBlocked, Transaction: overdueTxn}
	}
	m.draft.borrower = evt.From
	m.state = StateAwaitingItemID
	return Output{Kind: OutPromptItemID}
}

func (m *Machine) startReturn(ctx context.Context) Output {
	m.reset()
	rentals, err := m.eng.ActiveRentals(ctx, m.userID)
	if err != nil {
		return failureOutput(err)
	}
	if len(rentals) == 0 {
		return Output{Kind: OutNoActiveRentals}
	}
	// Snapshot at flow entry: selection is by index into this list, not a
	// live re-query.
	m.options = rentals
	m.state = StateAwaitingReturnChoice
	return Output{Kind: OutPromptReturnChoice, Rentals: rentals}
}

func (m *Machine) handleItemID(ctx context.Context, evt Event) Output {
	if evt.Kind != EventText || strings.TrimSpace(evt.Text) == "" {
		return Output{Kind: OutPromptItemID}
	}
	avail, err := m.eng.CheckAvailability(ctx, strings.TrimSpace(evt.Text))
	if err != nil {
		return failureOutput(err)
	}
	if avail.Item == nil {
		return Output{Kind: OutItemNotFound}
	}
	if !avail.Available {
		return Output{Kind: OutItemOutOfStock, Item: avail.Item}
	}
	m.draft.item = avail.Item
	m.draft.availability = avail.Qty
	m.state = StateAwaitingQuantity
	return Output{
		Kind:      OutPromptQuantity,
		Item:      avail.Item,
		Available: avail.Qty,
		MaxQty:    m.quantityCap(),
	}
}

func (m *Machine) quantityCap() int {
	limit := m.limits.MaxQuantity
	if m.draft.availability < limit {
		limit = m.draft.availability
	}
	return limit
}

func (m *Machine) handleQuantity(evt Event) Output {
	reprompt := Output{
		Kind:      OutQuantityInvalid,
		Item:      m.draft.item,
		Available: m.draft.availability,
		MaxQty:    m.quantityCap(),
	}
	if evt.Kind != EventText {
		reprompt.Violation = QuantityNotANumber
		return reprompt
	}
	qty, err := strconv.Atoi(strings.TrimSpace(evt.Text))
	if err != nil {
		reprompt.Violation = QuantityNotANumber
		return reprompt
	}
	switch {
	case qty < 1:
		reprompt.Violation = QuantityBelowMin
		return reprompt
	case qty > m.limits.MaxQuantity:
		reprompt.Violation = QuantityAboveCeiling
		return reprompt
	case qty > m.draft.availability:
		reprompt.Violation = QuantityAboveAvail
		return reprompt
	}
	m.draft.qty = qty
	m.state = StateAwaitingDuration
	return Output{Kind: OutPromptDuration, Item: m.draft.item, Qty: qty, Presets: DurationPresets}
}

func (m *Machine) handleDuration(evt Event) Output {
	if evt.Kind != EventText {
		return Output{Kind: OutDurationInvalid, Violation: DurationNotANumber, Presets: DurationPresets}
	}
	text := strings.ToLower(strings.TrimSpace(evt.Text))
	if text == "custom" {
		m.state = StateAwaitingCustomDays
		return Output{Kind: OutPromptCustomDays, MaxDays: m.limits.MaxDurationDays}
	}
	days, err := strconv.Atoi(text)
	if err != nil {
		return Output{Kind: OutDurationInvalid, Violation: DurationNotANumber, Presets: DurationPresets}
	}
	for _, preset := range DurationPresets {
		if days == preset {
			return m.acceptDuration(days)
		}
	}
	return Output{Kind: OutDurationInvalid, Violation: DurationNotAPreset, Presets: DurationPresets}
}

func (m *Machine) handleCustomDays(evt Event) Output {
	if evt.Kind != EventText {
		return Output{Kind: OutDurationInvalid, Violation: DurationNotANumber, MaxDays: m.limits.MaxDurationDays}
	}
	days, err := strconv.Atoi(strings.TrimSpace(evt.Text))
	if err != nil {
		return Output{Kind: OutDurationInvalid, Violation: DurationNotANumber, MaxDays: m.limits.MaxDurationDays}
	}
	if days < 1 || days > m.limits.MaxDurationDays {
		return Output{Kind: OutDurationInvalid, Violation: DurationOutOfRange, MaxDays: m.limits.MaxDurationDays}
	}
	return m.acceptDuration(days)
}

func (m *Machine) acceptDuration(days int) Output {
	m.draft.durationDays = days
	m.state = StateAwaitingPickupPhoto
	return Output{
		Kind:    OutPromptPickupPhoto,
		Item:    m.draft.item,
		Qty:     m.draft.qty,
		MaxDays: days,
	}
}

func (m *Machine) handlePickupPhoto(ctx context.Context, evt Event) Output {
	if evt.Kind != EventPhoto || evt.PhotoRef == "" {
		return Output{Kind: OutPromptPickupPhoto, Item: m.draft.item, Qty: m.draft.qty}
	}
	txn, err := m.eng.Reserve(ctx, engine.ReserveInput{
		ItemID:         m.draft.item.ID,
		Qty:            m.draft.qty,
		DurationDays:   m.draft.durationDays,
		UserID:         m.userID,
		BorrowerName:   m.draft.borrower.Name,
		ChatHandle:     m.draft.borrower.Handle,
		PickupPhotoRef: evt.PhotoRef,
	})
	if err != nil {
		// Availability changed between selection and confirmation. The
		// flow terminates; the user must start over against fresh stock.
		if pkgerrors.HasCode(err, pkgerrors.CodeNoLongerAvailable) ||
			pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			item := m.draft.item
			m.reset()
			return Output{Kind: OutNoLongerAvailable, Item: item}
		}
		return failureOutput(err)
	}
	m.reset()
	return Output{Kind: OutRentalConfirmed, Transaction: txn}
}

func (m *Machine) handleReturnChoice(evt Event) Output {
	reprompt := Output{Kind: OutReturnInvalid, Rentals: m.options}
	if evt.Kind != EventText {
		return reprompt
	}
	idx, err := strconv.Atoi(strings.TrimSpace(evt.Text))
	if err != nil || idx < 1 || idx > len(m.options) {
		return reprompt
	}
	m.chosen = &m.options[idx-1]
	m.state = StateAwaitingReturnPhoto
	return Output{Kind: OutPromptReturnPhoto, Transaction: m.chosen}
}

func (m *Machine) handleReturnPhoto(ctx context.Context, evt Event) Output {
	if evt.Kind != EventPhoto || evt.PhotoRef == "" {
		return Output{Kind: OutPromptReturnPhoto, Transaction: m.chosen}
	}
	txn, err := m.eng.Release(ctx, m.chosen.ID, evt.PhotoRef)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) ||
			pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			m.reset()
			return failureOutput(err)
		}
		return failureOutput(err)
	}
	m.reset()
	return Output{Kind: OutReturnConfirmed, Transaction: txn}
}

// failureOutput surfaces an engine failure without losing its code; the
// machine stays in place for retryable failures so the user can try again.
func failureOutput(err error) Output {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return Output{Kind: OutFailure, ErrorCode: code}
}
