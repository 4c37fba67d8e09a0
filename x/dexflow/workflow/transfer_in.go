package workflow

import (
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func (s TransferIn) enter(env Env) (Result, error) {
	if s.AmountOut.IsZero() {
		return s.finish(env)
	}
	if !env.Host.AccountReachable(s.Task.Account()) {
		return reopen(env, TransferIn{Task: s.Task, AmountOut: s.AmountOut})
	}
	msgs, err := env.Host.TransferIn(s.Task.Account(), s.AmountOut)
	if err != nil {
		return Result{}, err
	}
	s.AwaitingRetry = false
	return Result{Next: s, Batch: types.BatchOf(msgs...)}, nil
}

func (s TransferIn) finish(env Env) (Result, error) {
	batch, err := s.Task.Finish(env, s.AmountOut)
	if err != nil {
		return Result{}, err
	}
	return Result{Next: Done{TaskLabel: s.Task.Label(), AmountOut: s.AmountOut}, Batch: batch}, nil
}

func (s TransferIn) onResponse(env Env, _ []byte) (Result, error) {
	// The ICA ack comes back after the host executed the return transfer, and
	// the venue credits AmountOut of OutDenom to dexflow in that same step. A
	// relayed ICS-20 return packet would land later and is not awaited.
	return s.finish(env)
}

func (s TransferIn) onError(env Env, _ []byte) (Result, error) {
	return s.onTimeout(env)
}

func (s TransferIn) onTimeout(env Env) (Result, error) {
	s.AwaitingRetry = true
	return retry(env, s)
}

func (s TransferIn) onTimeAlarm(env Env) (Result, error) {
	if !s.AwaitingRetry {
		return unexpected(s, "time alarm")
	}
	return s.enter(env)
}
