package tasks

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// Base holds what every task shares: the ordered input coins and the
// collaborators the workflow talks to.
type Base struct {
	workflow.CoinList
	Remote    types.RemoteAccount `json:"account"`
	OracleRef types.OracleRef     `json:"oracle"`
	AlarmsRef types.TimeAlarmsRef `json:"time_alarms"`
}

// NewBase builds a Base over coins.
func NewBase(oracle types.OracleRef, alarms types.TimeAlarmsRef, coins ...sdk.Coin) Base {
	return Base{
		CoinList:  workflow.NewCoinList(coins...),
		OracleRef: oracle,
		AlarmsRef: alarms,
	}
}

func (b Base) Account() types.RemoteAccount    { return b.Remote }
func (b Base) Oracle() types.OracleRef         { return b.OracleRef }
func (b Base) TimeAlarms() types.TimeAlarmsRef { return b.AlarmsRef }

// RegisterAll registers every task type of this package.
func RegisterAll(r *workflow.TaskRegistry) {
	workflow.RegisterTask[OpenPosition](r)
	workflow.RegisterTask[ClosePosition](r)
	workflow.RegisterTask[BuyBack](r)
}

// NewRegistry returns a registry holding every task type of this package.
func NewRegistry() *workflow.TaskRegistry {
	r := workflow.NewTaskRegistry()
	RegisterAll(r)
	return r
}

// payout sends the proceeds out of escrow to recipient. Zero proceeds send nothing.
func payout(recipient string, amount sdk.Coin) []sdk.Msg {
	if amount.IsZero() {
		return nil
	}
	return []sdk.Msg{&banktypes.MsgSend{
		FromAddress: authtypes.NewModuleAddress(types.ModuleName).String(),
		ToAddress:   recipient,
		Amount:      sdk.NewCoins(amount),
	}}
}

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return fmt.Errorf("invalid %s address %q: %w", field, addr, err)
	}
	return nil
}
