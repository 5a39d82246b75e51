package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"math/big"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	EventStore interface {
		CreateEvent(ctx context.Context, event *Event) error
		ListEvents(ctx context.Context, scope uuid.UUID, kind EventKind, limit int) ([]*Event, error)
	}

	// Event is an audit record of a committed operation. Scope is the
	// vault or cauldron the operation ran against.
	Event struct {
		Id        uuid.UUID       `json:"id"`
		Kind      EventKind       `json:"kind"`
		Scope     uuid.UUID       `json:"scope"`
		Mint      string          `json:"mint"`
		From      string          `json:"from"`
		To        string          `json:"to"`
		Amount    decimal.Decimal `json:"amount"`
		Share     decimal.Decimal `json:"share"`
		Extra     EventExtra      `json:"extra"`
		CreatedAt int64           `json:"createdAt"`
	}

	EventExtra map[string]string
)

type EventKind string

const (
	EventDeposit           EventKind = "deposit"
	EventWithdraw          EventKind = "withdraw"
	EventTransfer          EventKind = "transfer"
	EventFlashLoan         EventKind = "flash_loan"
	EventStrategyQueued    EventKind = "strategy_queued"
	EventStrategyActivated EventKind = "strategy_activated"
	EventStrategyProfit    EventKind = "strategy_profit"
	EventStrategyLoss      EventKind = "strategy_loss"
	EventStrategyInvest    EventKind = "strategy_invest"
	EventStrategyDivest    EventKind = "strategy_divest"
	EventBorrow            EventKind = "borrow"
	EventRepay             EventKind = "repay"
	EventAddCollateral     EventKind = "add_collateral"
	EventRemoveCollateral  EventKind = "remove_collateral"
	EventAccrue            EventKind = "accrue"
	EventWithdrawFees      EventKind = "withdraw_fees"
	EventLiquidate         EventKind = "liquidate"
	EventLiquidateBegin    EventKind = "liquidate_begin"
	EventLiquidateSwap     EventKind = "liquidate_swap"
	EventLiquidateComplete EventKind = "liquidate_complete"
)

func NewEvent(clk clock.Clock, kind EventKind, scope uuid.UUID, mint string) *Event {
	return &Event{
		Id:        uuid.Must(uuid.NewV4()),
		Kind:      kind,
		Scope:     scope,
		Mint:      mint,
		Amount:    decimal.Zero,
		Share:     decimal.Zero,
		Extra:     EventExtra{},
		CreatedAt: clk.Now().Unix(),
	}
}

func (e *Event) WithParties(from, to string) *Event {
	e.From = from
	e.To = to
	return e
}

func (e *Event) WithAmounts(amount, share uint64) *Event {
	e.Amount = decimalFromUint64(amount)
	e.Share = decimalFromUint64(share)
	return e
}

func decimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func (e *Event) With(key, value string) *Event {
	e.Extra[key] = value
	return e
}

func (j EventExtra) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *EventExtra) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	case nil:
		*j = EventExtra{}
		return nil
	default:
		return errors.Errorf("unsupported event extra type %T", value)
	}
}

// recorder buffers the events of one operation until it commits.
type recorder struct {
	clk    clock.Clock
	events []*Event
}

func (r *recorder) record(kind EventKind, scope uuid.UUID, mint string) *Event {
	event := NewEvent(r.clk, kind, scope, mint)
	r.events = append(r.events, event)
	return event
}
