package workflow

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// swapRequests builds one request per coin not already in the output denom,
// in coin order.
func swapRequests(env Env, task SwapTask) ([]types.SwapRequest, error) {
	acc := task.Account()
	out := task.OutDenom()
	var requests []types.SwapRequest
	_, err := task.VisitCoins(func(coin sdk.Coin) (types.IterNext, error) {
		if coin.Denom == out {
			return types.IterContinue, nil
		}
		route, err := env.Oracle.SwapPath(task.Oracle(), coin.Denom, out)
		if err != nil {
			return types.IterStop, err
		}
		if len(route) == 0 || route[len(route)-1].TokenOut != out {
			return types.IterStop, errorsmod.Wrapf(types.ErrNoSwapRoute, "%s -> %s", coin.Denom, out)
		}
		requests = append(requests, types.SwapRequest{
			Sender:       acc.Address,
			TokenIn:      coin,
			Routes:       route,
			MinAmountOut: sdkmath.ZeroInt(),
		})
		return types.IterContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// DecodeAmountOut folds the per-swap results into the total output amount.
// Coins already in the output denom contribute their own amount and consume
// no result; every other coin consumes the next result in order.
func DecodeAmountOut(task SwapTask, amounts []sdkmath.Int) (sdkmath.Int, error) {
	out := task.OutDenom()
	total := sdkmath.ZeroInt()
	used := 0
	state, err := task.VisitCoins(func(coin sdk.Coin) (types.IterNext, error) {
		if coin.Denom == out {
			total = total.Add(coin.Amount)
			return types.IterContinue, nil
		}
		if used >= len(amounts) {
			return types.IterStop, nil
		}
		amount := amounts[used]
		if amount.IsNil() || amount.IsNegative() {
			return types.IterStop, errorsmod.Wrapf(types.ErrMalformedResponse, "swap result %d is negative", used)
		}
		total = total.Add(amount)
		used++
		return types.IterContinue, nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	if state == types.IterIncomplete {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrMalformedResponse, "only %d swap results for the swapped coins", len(amounts))
	}
	if used == 0 {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrUnexpectedEvent, "swap response without any swapped coin")
	}
	if used != len(amounts) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrMalformedResponse, "%d unexpected extra swap results", len(amounts)-used)
	}
	return total, nil
}

func passThroughAmount(task SwapTask) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, coin := range task.Coins() {
		if coin.Denom == task.OutDenom() {
			total = total.Add(coin.Amount)
		}
	}
	return total
}

func (s Swapping) enter(env Env) (Result, error) {
	if !env.Host.AccountReachable(s.Task.Account()) {
		return reopen(env, Swapping{Task: s.Task})
	}
	requests, err := swapRequests(env, s.Task)
	if err != nil {
		return Result{}, err
	}
	if len(requests) == 0 {
		out := sdk.NewCoin(s.Task.OutDenom(), passThroughAmount(s.Task))
		return TransferIn{Task: s.Task, AmountOut: out}.enter(env)
	}
	msg, err := env.Host.SubmitSwap(s.Task.Account(), requests)
	if err != nil {
		return Result{}, err
	}
	s.AwaitingRetry = false
	return Result{Next: s, Batch: types.BatchOf(msg)}, nil
}

func (s Swapping) onResponse(env Env, payload []byte) (Result, error) {
	amounts, err := env.Host.DecodeSwapResponse(payload)
	if err != nil {
		return Fail(env, s, errorsmod.Wrap(types.ErrMalformedResponse, err.Error()))
	}
	total, err := DecodeAmountOut(s.Task, amounts)
	if err != nil {
		if errorsmod.IsOf(err, types.ErrUnexpectedEvent) {
			return Result{}, err
		}
		return Fail(env, s, err)
	}
	return TransferIn{Task: s.Task, AmountOut: sdk.NewCoin(s.Task.OutDenom(), total)}.enter(env)
}

func (s Swapping) onError(env Env, _ []byte) (Result, error) {
	return s.onTimeout(env)
}

func (s Swapping) onTimeout(env Env) (Result, error) {
	s.AwaitingRetry = true
	return retry(env, s)
}

func (s Swapping) onTimeAlarm(env Env) (Result, error) {
	if !s.AwaitingRetry {
		return unexpected(s, "time alarm")
	}
	return s.enter(env)
}
