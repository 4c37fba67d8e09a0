package workflow

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// Start validates task and returns the first state of a new workflow,
// together with the account registration instruction.
func Start(env Env, task SwapTask, owner string, conn types.Connection) (Result, error) {
	if err := ValidateTask(task); err != nil {
		return Result{}, err
	}
	if owner == "" {
		return Result{}, errorsmod.Wrap(types.ErrInvalidTask, "empty account owner")
	}
	if err := conn.Validate(); err != nil {
		return Result{}, err
	}
	return OpeningAccount{Task: task, Owner: owner, Connection: conn}.enter(env)
}

// OnResponse handles a successful remote outcome.
func OnResponse(env Env, s State, payload []byte) (Result, error) {
	switch st := s.(type) {
	case OpeningAccount:
		return st.onResponse(env, payload)
	case TransferOut:
		return st.onResponse(env, payload)
	case Swapping:
		return st.onResponse(env, payload)
	case TransferIn:
		return st.onResponse(env, payload)
	case ReopeningAccount:
		return st.onResponse(env, payload)
	default:
		return unexpected(s, "response")
	}
}

// OnError handles an explicit remote error.
func OnError(env Env, s State, payload []byte) (Result, error) {
	switch st := s.(type) {
	case OpeningAccount:
		return st.onError(env, payload)
	case TransferOut:
		return st.onError(env, payload)
	case Swapping:
		return st.onError(env, payload)
	case TransferIn:
		return st.onError(env, payload)
	case ReopeningAccount:
		return st.onError(env, payload)
	default:
		return unexpected(s, "error")
	}
}

// OnTimeout handles a remote timeout.
func OnTimeout(env Env, s State) (Result, error) {
	switch st := s.(type) {
	case OpeningAccount:
		return st.onTimeout(env)
	case TransferOut:
		return st.onTimeout(env)
	case Swapping:
		return st.onTimeout(env)
	case TransferIn:
		return st.onTimeout(env)
	case ReopeningAccount:
		return st.onTimeout(env)
	default:
		return unexpected(s, "timeout")
	}
}

// OnTimeAlarm handles an alarm. Stages accept it only while awaiting a
// retry; a Delivering state re-delivers its pending notification.
func OnTimeAlarm(env Env, s State) (Result, error) {
	switch st := s.(type) {
	case OpeningAccount:
		return st.onTimeAlarm(env)
	case TransferOut:
		return st.onTimeAlarm(env)
	case Swapping:
		return st.onTimeAlarm(env)
	case TransferIn:
		return st.onTimeAlarm(env)
	case ReopeningAccount:
		return st.onTimeAlarm(env)
	case Delivering:
		return st.onTimeAlarm(env)
	default:
		return unexpected(s, "time alarm")
	}
}

// Deliver dispatches n to the handler for its kind.
func Deliver(env Env, s State, n Notification) (Result, error) {
	switch n.Kind {
	case NotifyResponse:
		return OnResponse(env, s, n.Payload)
	case NotifyError:
		return OnError(env, s, n.Payload)
	case NotifyTimeout:
		return OnTimeout(env, s)
	case NotifyAlarm:
		return OnTimeAlarm(env, s)
	default:
		return Result{}, errorsmod.Wrapf(types.ErrUnexpectedEvent, "unknown notification kind %s", n.Kind)
	}
}

// Fail moves s to Failed and lets the task react if it implements FailureHandler.
func Fail(env Env, s State, cause error) (Result, error) {
	failed := FailedFrom(s, cause)
	if handler, ok := TaskOf(s).(FailureHandler); ok {
		batch, err := handler.OnFailure(env, failed.At, cause)
		if err != nil {
			return Result{}, errorsmod.Wrapf(err, "failure handler of %s", s.Label())
		}
		return Result{Next: failed, Batch: batch}, nil
	}
	return Result{Next: failed}, nil
}

// FailedFrom builds the Failed state for s without consulting the task.
func FailedFrom(s State, cause error) Failed {
	return Failed{TaskLabel: s.Label(), At: activeStage(s), Reason: cause.Error()}
}

// IsUnexpected reports whether err means the event does not belong to the state.
func IsUnexpected(err error) bool {
	return errors.Is(err, types.ErrUnexpectedEvent)
}

func enter(env Env, s State) (Result, error) {
	switch st := s.(type) {
	case OpeningAccount:
		return st.enter(env)
	case TransferOut:
		return st.enter(env)
	case Swapping:
		return st.enter(env)
	case TransferIn:
		return st.enter(env)
	case ReopeningAccount:
		return st.enter(env)
	default:
		return unexpected(s, "enter")
	}
}

func retry(env Env, next State) (Result, error) {
	task := TaskOf(next)
	at := env.Now.Add(env.RetryDelay)
	batch := types.ScheduleAlarm(task.TimeAlarms(), at)
	batch.Events = sdk.Events{sdk.NewEvent(
		types.EventTypeRetryScheduled,
		sdk.NewAttribute(types.AttributeKeyLabel, task.Label()),
		sdk.NewAttribute(types.AttributeKeyStage, next.Stage().String()),
		sdk.NewAttribute(types.AttributeKeyFireAt, at.UTC().Format(timeLayout)),
	)}
	return Result{Next: next, Batch: batch}, nil
}

func unexpected(s State, event string) (Result, error) {
	return Result{}, errorsmod.Wrapf(types.ErrUnexpectedEvent, "%s in stage %s", event, s.Stage())
}

// activeStage is the stage doing remote work, looking through wrappers.
func activeStage(s State) Stage {
	switch st := s.(type) {
	case Delivering:
		return activeStage(st.Inner)
	case Failed:
		return st.At
	default:
		return s.Stage()
	}
}
