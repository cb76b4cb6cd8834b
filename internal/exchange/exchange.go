package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION ADAPTER - Interface consumed by the bot and lifecycle manager
// ═══════════════════════════════════════════════════════════════════════════════

// PlanType selects the protective order kind
type PlanType string

const (
	PlanTakeProfit PlanType = "profit_plan"
	PlanStopLoss   PlanType = "loss_plan"
)

// PositionSnapshot is the exchange's view of an open position
type PositionSnapshot struct {
	Symbol     string
	Direction  types.Direction
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// Adapter is the execution surface the rest of the bot depends on
type Adapter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	GetTicker(ctx context.Context, symbol string) (types.Tick, error)
	PlaceOrder(ctx context.Context, direction types.Direction, size, price decimal.Decimal, symbol string) (string, error)
	PlaceTPSLOrder(ctx context.Context, kind PlanType, triggerPrice, size decimal.Decimal, symbol string) (string, error)
	GetPosition(ctx context.Context, symbol string) (*PositionSnapshot, error)
}

// Error classes. The lifecycle manager retries idempotent placements and
// otherwise surfaces the failure to logging/alerting.
var (
	ErrNetwork  = errors.New("exchange: network failure")
	ErrAuth     = errors.New("exchange: authentication failure")
	ErrRejected = errors.New("exchange: order rejected")
)

// APIError wraps an exchange-level failure with its class
type APIError struct {
	Class   error // one of ErrNetwork, ErrAuth, ErrRejected
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v (code=%d): %s", e.Class, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Class }

// IsRetryable reports whether a failed call is worth retrying.
// Network failures are transient; rejections and auth failures are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
