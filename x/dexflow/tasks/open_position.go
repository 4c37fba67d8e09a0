package tasks

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const (
	TypeOpenPosition = "open_position"

	EventTypePositionOpened = "position_opened"

	AttributeKeyPosition = "position"
	AttributeKeyCustody  = "custody"
	AttributeKeyAmount   = "amount"
)

var _ workflow.SwapTask = OpenPosition{}

// OpenPosition converts the downpayment and the loan into the position asset
// and hands the asset to the position's custody account.
type OpenPosition struct {
	Base
	Position string `json:"position"`
	Custody  string `json:"custody"`
	Asset    string `json:"asset"`
}

// NewOpenPosition builds the task. A downpayment and loan in the same denom
// are moved as one coin.
func NewOpenPosition(base Base, position string, custody sdk.AccAddress, downpayment, loan sdk.Coin, asset string) (OpenPosition, error) {
	coins := []sdk.Coin{downpayment, loan}
	if downpayment.Denom == loan.Denom {
		coins = []sdk.Coin{downpayment.Add(loan)}
	}
	base.CoinList = workflow.NewCoinList(coins...)

	task := OpenPosition{
		Base:     base,
		Position: position,
		Custody:  custody.String(),
		Asset:    asset,
	}
	if err := task.Validate(); err != nil {
		return OpenPosition{}, err
	}
	return task, nil
}

// Validate checks the task on top of the generic workflow checks.
func (t OpenPosition) Validate() error {
	if t.Position == "" {
		return errorsmod.Wrap(types.ErrInvalidTask, "position cannot be empty")
	}
	if err := validateAddress("custody", t.Custody); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	return workflow.ValidateTask(t)
}

func (OpenPosition) Type() string       { return TypeOpenPosition }
func (t OpenPosition) Label() string    { return fmt.Sprintf("open/%s", t.Position) }
func (t OpenPosition) OutDenom() string { return t.Asset }

func (t OpenPosition) WithAccount(acc types.RemoteAccount) workflow.SwapTask {
	t.Remote = acc
	return t
}

// Finish sends the acquired asset to custody.
func (t OpenPosition) Finish(_ workflow.Env, amountOut sdk.Coin) (types.Batch, error) {
	batch := types.BatchOf(payout(t.Custody, amountOut)...)
	batch.Events = sdk.Events{sdk.NewEvent(
		EventTypePositionOpened,
		sdk.NewAttribute(AttributeKeyPosition, t.Position),
		sdk.NewAttribute(AttributeKeyCustody, t.Custody),
		sdk.NewAttribute(AttributeKeyAmount, amountOut.String()),
	)}
	return batch, nil
}
