package tasks

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const (
	TypeClosePosition = "close_position"

	EventTypePositionClosed      = "position_closed"
	EventTypePositionCloseFailed = "position_close_failed"

	AttributeKeyCloseKind = "close_kind"
	AttributeKeyLender    = "lender"
	AttributeKeyStage     = "stage"
	AttributeKeyReason    = "reason"
)

// CloseKind says why a position is being closed.
type CloseKind string

const (
	CloseRepay       CloseKind = "repay"
	CloseLiquidation CloseKind = "liquidation"
)

// Validate checks the kind is known.
func (k CloseKind) Validate() error {
	switch k {
	case CloseRepay, CloseLiquidation:
		return nil
	default:
		return fmt.Errorf("unknown close kind %q", string(k))
	}
}

var (
	_ workflow.SwapTask       = ClosePosition{}
	_ workflow.FailureHandler = ClosePosition{}
)

// ClosePosition sells the position asset for the loan currency and repays
// the lender with the proceeds.
type ClosePosition struct {
	Base
	Position string    `json:"position"`
	Kind     CloseKind `json:"kind"`
	Lender   string    `json:"lender"`
	Loan     string    `json:"loan_denom"`
}

// NewClosePosition builds the task over the position's asset.
func NewClosePosition(base Base, position string, kind CloseKind, lender sdk.AccAddress, asset sdk.Coin, loanDenom string) (ClosePosition, error) {
	base.CoinList = workflow.NewCoinList(asset)
	task := ClosePosition{
		Base:     base,
		Position: position,
		Kind:     kind,
		Lender:   lender.String(),
		Loan:     loanDenom,
	}
	if err := task.Validate(); err != nil {
		return ClosePosition{}, err
	}
	return task, nil
}

// Validate checks the task on top of the generic workflow checks.
func (t ClosePosition) Validate() error {
	if t.Position == "" {
		return errorsmod.Wrap(types.ErrInvalidTask, "position cannot be empty")
	}
	if err := t.Kind.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	if err := validateAddress("lender", t.Lender); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	return workflow.ValidateTask(t)
}

func (ClosePosition) Type() string       { return TypeClosePosition }
func (t ClosePosition) Label() string    { return fmt.Sprintf("%s/%s", t.Kind, t.Position) }
func (t ClosePosition) OutDenom() string { return t.Loan }

func (t ClosePosition) WithAccount(acc types.RemoteAccount) workflow.SwapTask {
	t.Remote = acc
	return t
}

// Finish repays the lender.
func (t ClosePosition) Finish(_ workflow.Env, amountOut sdk.Coin) (types.Batch, error) {
	batch := types.BatchOf(payout(t.Lender, amountOut)...)
	batch.Events = sdk.Events{sdk.NewEvent(
		EventTypePositionClosed,
		sdk.NewAttribute(AttributeKeyPosition, t.Position),
		sdk.NewAttribute(AttributeKeyCloseKind, string(t.Kind)),
		sdk.NewAttribute(AttributeKeyLender, t.Lender),
		sdk.NewAttribute(AttributeKeyAmount, amountOut.String()),
	)}
	return batch, nil
}

// OnFailure reports the position as still open so it can be closed again.
func (t ClosePosition) OnFailure(_ workflow.Env, stage workflow.Stage, cause error) (types.Batch, error) {
	return types.Batch{Events: sdk.Events{sdk.NewEvent(
		EventTypePositionCloseFailed,
		sdk.NewAttribute(AttributeKeyPosition, t.Position),
		sdk.NewAttribute(AttributeKeyCloseKind, string(t.Kind)),
		sdk.NewAttribute(AttributeKeyStage, stage.String()),
		sdk.NewAttribute(AttributeKeyReason, cause.Error()),
	)}}, nil
}
