package workflow

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

const timeLayout = time.RFC3339Nano

// DeliveryFailed parks n next to s and schedules its re-delivery shortly
// after now. The caller must have discarded every effect of the failed
// attempt. Terminal and already parked states cannot be parked.
func DeliveryFailed(env Env, s State, n Notification) (Result, error) {
	switch s.(type) {
	case Delivering, Done, Failed:
		return Result{}, errorsmod.Wrapf(types.ErrDeliveryFailed, "cannot defer %s in stage %s", n.Kind, s.Stage())
	}
	task := TaskOf(s)
	at := env.Now.Add(env.DeliveryDelay)
	batch := types.ScheduleAlarm(task.TimeAlarms(), at)
	batch.Events = sdk.Events{sdk.NewEvent(
		types.EventTypeDeliveryDeferred,
		sdk.NewAttribute(types.AttributeKeyLabel, task.Label()),
		sdk.NewAttribute(types.AttributeKeyStage, s.Stage().String()),
		sdk.NewAttribute(types.AttributeKeyKind, n.Kind.String()),
		sdk.NewAttribute(types.AttributeKeyFireAt, at.UTC().Format(timeLayout)),
	)}
	return Result{Next: Delivering{Inner: s, Pending: n}, Batch: batch}, nil
}

// A second failure is returned to the caller, which decides whether the
// workflow fails.
func (s Delivering) onTimeAlarm(env Env) (Result, error) {
	res, err := Deliver(env, s.Inner, s.Pending)
	if err != nil {
		return Result{}, errorsmod.Wrapf(types.ErrDeliveryFailed, "re-delivery of %s: %s", s.Pending.Kind, err)
	}
	return res, nil
}
