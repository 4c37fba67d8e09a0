package workflow

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// CoinVisitor is called once per coin, in the task's coin order.
type CoinVisitor func(coin sdk.Coin) (types.IterNext, error)

// SwapTask is the client of a workflow: it provides the coins to move, the
// output denom and the collaborators, and decides what happens with the
// proceeds once they are back on the local chain.
type SwapTask interface {
	// Type is the registry name the task is persisted under.
	Type() string
	// Label identifies the task in events and logs.
	Label() string

	// Account is the remote account; zero until registration completes.
	Account() types.RemoteAccount
	// WithAccount returns a copy bound to acc.
	WithAccount(acc types.RemoteAccount) SwapTask

	Oracle() types.OracleRef
	TimeAlarms() types.TimeAlarmsRef

	// Coins is the ordered, non-empty input set.
	Coins() []sdk.Coin
	// VisitCoins walks Coins in order until the visitor stops or errors.
	VisitCoins(visit CoinVisitor) (types.IterState, error)
	// OutDenom is the denom every input is swapped into.
	OutDenom() string

	// Finish consumes the proceeds and returns the final batch.
	Finish(env Env, amountOut sdk.Coin) (types.Batch, error)
}

// FailureHandler is implemented by tasks that react to terminal failure.
type FailureHandler interface {
	OnFailure(env Env, stage Stage, cause error) (types.Batch, error)
}

// CoinList is an ordered coin set tasks can embed.
type CoinList struct {
	Items []sdk.Coin `json:"coins"`
}

// NewCoinList copies coins into a list.
func NewCoinList(coins ...sdk.Coin) CoinList {
	return CoinList{Items: append([]sdk.Coin{}, coins...)}
}

// Coins returns the coins in order.
func (l CoinList) Coins() []sdk.Coin {
	return l.Items
}

// VisitCoins walks the list in order.
func (l CoinList) VisitCoins(visit CoinVisitor) (types.IterState, error) {
	for _, coin := range l.Items {
		next, err := visit(coin)
		if err != nil {
			return types.IterIncomplete, err
		}
		if next == types.IterStop {
			return types.IterIncomplete, nil
		}
	}
	return types.IterComplete, nil
}

// ValidateTask checks the parts of a task the engine relies on.
func ValidateTask(task SwapTask) error {
	if task == nil {
		return errorsmod.Wrap(types.ErrInvalidTask, "nil task")
	}
	coins := task.Coins()
	if len(coins) == 0 {
		return types.ErrEmptyCoinSet
	}
	seen := make(map[string]struct{}, len(coins))
	for _, c := range coins {
		if !c.IsValid() || c.IsZero() {
			return errorsmod.Wrapf(types.ErrInvalidTask, "invalid coin %s", c)
		}
		if _, dup := seen[c.Denom]; dup {
			return errorsmod.Wrapf(types.ErrInvalidTask, "duplicate denom %s", c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	if err := sdk.ValidateDenom(task.OutDenom()); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidTask, "out denom: %s", err)
	}
	if err := task.Oracle().Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	if err := task.TimeAlarms().Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTask, err.Error())
	}
	if task.Label() == "" {
		return errorsmod.Wrap(types.ErrInvalidTask, "empty label")
	}
	return nil
}

func coinAt(task SwapTask, cursor types.CoinCursor) sdk.Coin {
	coins := task.Coins()
	if int(cursor.Current) >= len(coins) {
		panic(fmt.Sprintf("cursor %d out of range for %d coins", cursor.Current, len(coins)))
	}
	return coins[cursor.Current]
}
