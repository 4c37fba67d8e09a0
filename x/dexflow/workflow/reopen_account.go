package workflow

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func reopen(env Env, resume State) (Result, error) {
	return ReopeningAccount{Resume: resume}.enter(env)
}

func (s ReopeningAccount) account() types.RemoteAccount {
	return TaskOf(s.Resume).Account()
}

func (s ReopeningAccount) enter(env Env) (Result, error) {
	acc := s.account()
	msg, err := env.Host.RegisterAccount(acc.Owner, acc.Connection)
	if err != nil {
		return Result{}, err
	}
	s.AwaitingRetry = false
	return Result{Next: s, Batch: types.BatchOf(msg)}, nil
}

// Reopening must yield the same remote account, otherwise the funds already
// transferred out would be stranded.
func (s ReopeningAccount) onResponse(env Env, payload []byte) (Result, error) {
	resp, err := types.ParseRegistrationResponse(payload)
	if err != nil {
		return Fail(env, s, errorsmod.Wrap(types.ErrRegistrationFailed, err.Error()))
	}
	if want := s.account().Address; resp.RemoteAccountID != want {
		return Fail(env, s, errorsmod.Wrapf(types.ErrRemoteAccountChanged, "expected %s, got %s", want, resp.RemoteAccountID))
	}
	return enter(env, s.Resume)
}

func (s ReopeningAccount) onError(env Env, payload []byte) (Result, error) {
	return Fail(env, s, errorsmod.Wrapf(types.ErrRegistrationFailed, "%s", payload))
}

func (s ReopeningAccount) onTimeout(env Env) (Result, error) {
	s.AwaitingRetry = true
	return retry(env, s)
}

func (s ReopeningAccount) onTimeAlarm(env Env) (Result, error) {
	if !s.AwaitingRetry {
		return unexpected(s, "time alarm")
	}
	return s.enter(env)
}
