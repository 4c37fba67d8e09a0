package tasks

import (
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const (
	TypeBuyBack = "buy_back"

	EventTypeProfitBoughtBack = "profit_bought_back"

	AttributeKeyTreasury = "treasury"
)

var _ workflow.SwapTask = BuyBack{}

// BuyBack converts accumulated protocol profit into the native currency and
// sends it to the treasury.
type BuyBack struct {
	Base
	Treasury string `json:"treasury"`
	Native   string `json:"native_denom"`
}

// NewBuyBack builds the task over profit, walked in denom order.
func NewBuyBack(base Base, treasury sdk.AccAddress, profit sdk.Coins, nativeDenom string) (BuyBack, error) {
	base.CoinList = workflow.NewCoinList(profit...)
	task := BuyBack{
		Base:     base,
		Treasury: treasury.String(),
		Native:   nativeDenom,
	}
	if err := task.Validate(); err != nil {
		return BuyBack{}, err
	}
	return task, nil
}

// Validate checks the task on top of the generic workflow checks.
func (t BuyBack) Validate() error {
	if err := validateAddress("treasury", t.Treasury); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	return workflow.ValidateTask(t)
}

func (BuyBack) Type() string       { return TypeBuyBack }
func (t BuyBack) Label() string    { return "buy-back/" + t.Native }
func (t BuyBack) OutDenom() string { return t.Native }

func (t BuyBack) WithAccount(acc types.RemoteAccount) workflow.SwapTask {
	t.Remote = acc
	return t
}

// Finish pays the treasury.
func (t BuyBack) Finish(_ workflow.Env, amountOut sdk.Coin) (types.Batch, error) {
	batch := types.BatchOf(payout(t.Treasury, amountOut)...)
	batch.Events = sdk.Events{sdk.NewEvent(
		EventTypeProfitBoughtBack,
		sdk.NewAttribute(AttributeKeyTreasury, t.Treasury),
		sdk.NewAttribute(AttributeKeyAmount, amountOut.String()),
	)}
	return batch, nil
}
