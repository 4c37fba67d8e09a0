package workflow

import (
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func (s TransferOut) enter(env Env) (Result, error) {
	msgs, err := env.Host.TransferOut(s.Task.Account(), coinAt(s.Task, s.Cursor))
	if err != nil {
		return Result{}, err
	}
	s.AwaitingRetry = false
	return Result{Next: s, Batch: types.BatchOf(msgs...)}, nil
}

func (s TransferOut) onResponse(env Env, _ []byte) (Result, error) {
	if s.Cursor.IsLast() {
		return Swapping{Task: s.Task}.enter(env)
	}
	return TransferOut{Task: s.Task, Cursor: s.Cursor.Next()}.enter(env)
}

func (s TransferOut) onError(env Env, _ []byte) (Result, error) {
	return s.onTimeout(env)
}

func (s TransferOut) onTimeout(env Env) (Result, error) {
	s.AwaitingRetry = true
	return retry(env, s)
}

func (s TransferOut) onTimeAlarm(env Env) (Result, error) {
	if !s.AwaitingRetry {
		return unexpected(s, "time alarm")
	}
	return s.enter(env)
}
