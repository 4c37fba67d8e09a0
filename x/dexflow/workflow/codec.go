package workflow

import (
	"encoding/json"
	"fmt"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// StateVersion is the version written into every persisted state.
const StateVersion uint32 = 2

// Envelope is the persisted form of a State.
type Envelope struct {
	Version uint32          `json:"version"`
	Stage   string          `json:"stage"`
	State   json.RawMessage `json:"state"`
}

// TaskEnvelope is the persisted form of a SwapTask.
type TaskEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// TaskDecoder rebuilds a task from its persisted value.
type TaskDecoder func(value json.RawMessage) (SwapTask, error)

// TaskRegistry knows how to decode every task type a chain runs.
type TaskRegistry struct {
	decoders map[string]TaskDecoder
}

// NewTaskRegistry returns an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{decoders: make(map[string]TaskDecoder)}
}

// Register adds a decoder. Registering a type twice panics.
func (r *TaskRegistry) Register(taskType string, dec TaskDecoder) {
	if _, ok := r.decoders[taskType]; ok {
		panic(fmt.Sprintf("swap task type %q already registered", taskType))
	}
	r.decoders[taskType] = dec
}

// RegisterTask registers T, decoded as plain JSON.
func RegisterTask[T SwapTask](r *TaskRegistry) {
	var zero T
	r.Register(zero.Type(), func(value json.RawMessage) (SwapTask, error) {
		var task T
		if err := json.Unmarshal(value, &task); err != nil {
			return nil, err
		}
		return task, nil
	})
}

// Types lists the registered task types.
func (r *TaskRegistry) Types() []string {
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EncodeTask wraps task with its type.
func EncodeTask(task SwapTask) (TaskEnvelope, error) {
	bz, err := json.Marshal(task)
	if err != nil {
		return TaskEnvelope{}, err
	}
	return TaskEnvelope{Type: task.Type(), Value: bz}, nil
}

// DecodeTask rebuilds a task from its envelope.
func (r *TaskRegistry) DecodeTask(env TaskEnvelope) (SwapTask, error) {
	dec, ok := r.decoders[env.Type]
	if !ok {
		return nil, errorsmod.Wrap(types.ErrUnknownTaskType, env.Type)
	}
	task, err := dec(env.Value)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidTask, "decode %s: %s", env.Type, err)
	}
	return task, nil
}

type openingAccountJSON struct {
	Task          TaskEnvelope     `json:"task"`
	Owner         string           `json:"owner"`
	Connection    types.Connection `json:"connection"`
	AwaitingRetry bool             `json:"awaiting_retry"`
}

type transferOutJSON struct {
	Task          TaskEnvelope     `json:"task"`
	Cursor        types.CoinCursor `json:"cursor"`
	AwaitingRetry bool             `json:"awaiting_retry"`
}

type swappingJSON struct {
	Task          TaskEnvelope `json:"task"`
	AwaitingRetry bool         `json:"awaiting_retry"`
}

type transferInJSON struct {
	Task          TaskEnvelope `json:"task"`
	AmountOut     sdk.Coin     `json:"amount_out"`
	AwaitingRetry bool         `json:"awaiting_retry"`
}

type reopeningAccountJSON struct {
	Resume        Envelope `json:"resume"`
	AwaitingRetry bool     `json:"awaiting_retry"`
}

type notificationJSON struct {
	Kind    string `json:"kind"`
	Payload []byte `json:"payload,omitempty"`
}

type deliveringJSON struct {
	Inner   Envelope         `json:"inner"`
	Pending notificationJSON `json:"pending"`
}

type doneJSON struct {
	Label     string   `json:"label"`
	AmountOut sdk.Coin `json:"amount_out"`
}

type failedJSON struct {
	Label  string `json:"label"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// MarshalState encodes s into its persisted form.
func MarshalState(s State) ([]byte, error) {
	env, err := toEnvelope(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func toEnvelope(s State) (Envelope, error) {
	var body any
	switch st := s.(type) {
	case OpeningAccount:
		task, err := EncodeTask(st.Task)
		if err != nil {
			return Envelope{}, err
		}
		body = openingAccountJSON{Task: task, Owner: st.Owner, Connection: st.Connection, AwaitingRetry: st.AwaitingRetry}
	case TransferOut:
		task, err := EncodeTask(st.Task)
		if err != nil {
			return Envelope{}, err
		}
		body = transferOutJSON{Task: task, Cursor: st.Cursor, AwaitingRetry: st.AwaitingRetry}
	case Swapping:
		task, err := EncodeTask(st.Task)
		if err != nil {
			return Envelope{}, err
		}
		body = swappingJSON{Task: task, AwaitingRetry: st.AwaitingRetry}
	case TransferIn:
		task, err := EncodeTask(st.Task)
		if err != nil {
			return Envelope{}, err
		}
		body = transferInJSON{Task: task, AmountOut: st.AmountOut, AwaitingRetry: st.AwaitingRetry}
	case ReopeningAccount:
		resume, err := toEnvelope(st.Resume)
		if err != nil {
			return Envelope{}, err
		}
		body = reopeningAccountJSON{Resume: resume, AwaitingRetry: st.AwaitingRetry}
	case Delivering:
		inner, err := toEnvelope(st.Inner)
		if err != nil {
			return Envelope{}, err
		}
		body = deliveringJSON{Inner: inner, Pending: notificationJSON{Kind: st.Pending.Kind.String(), Payload: st.Pending.Payload}}
	case Done:
		body = doneJSON{Label: st.TaskLabel, AmountOut: st.AmountOut}
	case Failed:
		body = failedJSON{Label: st.TaskLabel, Stage: st.At.String(), Reason: st.Reason}
	default:
		return Envelope{}, fmt.Errorf("unknown workflow state %T", s)
	}
	bz, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: StateVersion, Stage: s.Stage().String(), State: bz}, nil
}

// UnmarshalState decodes a persisted state written at StateVersion.
func (r *TaskRegistry) UnmarshalState(bz []byte) (State, error) {
	var env Envelope
	if err := json.Unmarshal(bz, &env); err != nil {
		return nil, fmt.Errorf("decode workflow envelope: %w", err)
	}
	return r.fromEnvelope(env)
}

func (r *TaskRegistry) fromEnvelope(env Envelope) (State, error) {
	if env.Version != StateVersion {
		return nil, errorsmod.Wrapf(types.ErrUnknownStateVersion, "got %d, want %d", env.Version, StateVersion)
	}
	stage, err := ParseStage(env.Stage)
	if err != nil {
		return nil, err
	}
	switch stage {
	case StageOpeningAccount:
		var body openingAccountJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		task, err := r.DecodeTask(body.Task)
		if err != nil {
			return nil, err
		}
		return OpeningAccount{Task: task, Owner: body.Owner, Connection: body.Connection, AwaitingRetry: body.AwaitingRetry}, nil
	case StageTransferOut:
		var body transferOutJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		task, err := r.DecodeTask(body.Task)
		if err != nil {
			return nil, err
		}
		if err := body.Cursor.Validate(len(task.Coins())); err != nil {
			return nil, err
		}
		return TransferOut{Task: task, Cursor: body.Cursor, AwaitingRetry: body.AwaitingRetry}, nil
	case StageSwapping:
		var body swappingJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		task, err := r.DecodeTask(body.Task)
		if err != nil {
			return nil, err
		}
		return Swapping{Task: task, AwaitingRetry: body.AwaitingRetry}, nil
	case StageTransferIn:
		var body transferInJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		task, err := r.DecodeTask(body.Task)
		if err != nil {
			return nil, err
		}
		return TransferIn{Task: task, AmountOut: body.AmountOut, AwaitingRetry: body.AwaitingRetry}, nil
	case StageReopeningAccount:
		var body reopeningAccountJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		resume, err := r.fromEnvelope(body.Resume)
		if err != nil {
			return nil, err
		}
		switch resume.(type) {
		case TransferOut, Swapping, TransferIn:
		default:
			return nil, fmt.Errorf("cannot resume %s after reopening the account", resume.Stage())
		}
		return ReopeningAccount{Resume: resume, AwaitingRetry: body.AwaitingRetry}, nil
	case StageDelivering:
		var body deliveringJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		inner, err := r.fromEnvelope(body.Inner)
		if err != nil {
			return nil, err
		}
		kind, err := parseNotificationKind(body.Pending.Kind)
		if err != nil {
			return nil, err
		}
		return Delivering{Inner: inner, Pending: Notification{Kind: kind, Payload: body.Pending.Payload}}, nil
	case StageDone:
		var body doneJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		return Done{TaskLabel: body.Label, AmountOut: body.AmountOut}, nil
	case StageFailed:
		var body failedJSON
		if err := json.Unmarshal(env.State, &body); err != nil {
			return nil, err
		}
		at, err := ParseStage(body.Stage)
		if err != nil {
			return nil, err
		}
		return Failed{TaskLabel: body.Label, At: at, Reason: body.Reason}, nil
	default:
		return nil, fmt.Errorf("unhandled stage %s", stage)
	}
}

func parseNotificationKind(name string) (NotificationKind, error) {
	for _, k := range []NotificationKind{NotifyResponse, NotifyError, NotifyTimeout, NotifyAlarm} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown notification kind %q", name)
}
