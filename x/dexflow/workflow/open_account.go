package workflow

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func (s OpeningAccount) enter(env Env) (Result, error) {
	msg, err := env.Host.RegisterAccount(s.Owner, s.Connection)
	if err != nil {
		return Result{}, err
	}
	s.AwaitingRetry = false
	return Result{Next: s, Batch: types.BatchOf(msg)}, nil
}

func (s OpeningAccount) onResponse(env Env, payload []byte) (Result, error) {
	resp, err := types.ParseRegistrationResponse(payload)
	if err != nil {
		return Fail(env, s, errorsmod.Wrap(types.ErrRegistrationFailed, err.Error()))
	}
	acc, err := types.NewRemoteAccount(s.Owner, resp.RemoteAccountID, s.Connection)
	if err != nil {
		return Fail(env, s, err)
	}
	cursor, err := types.NewCoinCursor(len(s.Task.Coins()))
	if err != nil {
		return Fail(env, s, err)
	}
	return TransferOut{Task: s.Task.WithAccount(acc), Cursor: cursor}.enter(env)
}

// A rejected registration is not retried: the channel handshake failed on
// the counterparty and would fail again.
func (s OpeningAccount) onError(env Env, payload []byte) (Result, error) {
	return Fail(env, s, errorsmod.Wrapf(types.ErrRegistrationFailed, "%s", payload))
}

func (s OpeningAccount) onTimeout(env Env) (Result, error) {
	s.AwaitingRetry = true
	return retry(env, s)
}

func (s OpeningAccount) onTimeAlarm(env Env) (Result, error) {
	if !s.AwaitingRetry {
		return unexpected(s, "time alarm")
	}
	return s.enter(env)
}
