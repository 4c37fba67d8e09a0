package workflow

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// Stage tags a State variant.
type Stage int

const (
	StageOpeningAccount Stage = iota + 1
	StageTransferOut
	StageSwapping
	StageTransferIn
	StageReopeningAccount
	StageDelivering
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageOpeningAccount:   "opening_account",
	StageTransferOut:      "transfer_out",
	StageSwapping:         "swapping",
	StageTransferIn:       "transfer_in",
	StageReopeningAccount: "reopening_account",
	StageDelivering:       "delivering",
	StageDone:             "done",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// State is the persisted state of one workflow. The set of variants is closed.
type State interface {
	Stage() Stage
	Label() string
	isState()
}

// OpeningAccount waits for the remote account to be registered.
type OpeningAccount struct {
	Task          SwapTask
	Owner         string
	Connection    types.Connection
	AwaitingRetry bool
}

// TransferOut waits for the transfer of the coin under Cursor.
type TransferOut struct {
	Task          SwapTask
	Cursor        types.CoinCursor
	AwaitingRetry bool
}

// Swapping waits for the remote swap transaction.
type Swapping struct {
	Task          SwapTask
	AwaitingRetry bool
}

// TransferIn waits for the proceeds to arrive back on the local chain.
type TransferIn struct {
	Task          SwapTask
	AmountOut     sdk.Coin
	AwaitingRetry bool
}

// ReopeningAccount re-registers a remote account whose channel closed and
// then resumes Resume, which is one of TransferOut, Swapping or TransferIn.
type ReopeningAccount struct {
	Resume        State
	AwaitingRetry bool
}

// Delivering holds a notification whose handling failed, pending re-delivery.
type Delivering struct {
	Inner   State
	Pending Notification
}

// Done is the terminal success state.
type Done struct {
	TaskLabel string
	AmountOut sdk.Coin
}

// Failed is the terminal failure state.
type Failed struct {
	TaskLabel string
	At        Stage
	Reason    string
}

func (OpeningAccount) Stage() Stage   { return StageOpeningAccount }
func (TransferOut) Stage() Stage      { return StageTransferOut }
func (Swapping) Stage() Stage         { return StageSwapping }
func (TransferIn) Stage() Stage       { return StageTransferIn }
func (ReopeningAccount) Stage() Stage { return StageReopeningAccount }
func (Delivering) Stage() Stage       { return StageDelivering }
func (Done) Stage() Stage             { return StageDone }
func (Failed) Stage() Stage           { return StageFailed }

func (s OpeningAccount) Label() string   { return s.Task.Label() }
func (s TransferOut) Label() string      { return s.Task.Label() }
func (s Swapping) Label() string         { return s.Task.Label() }
func (s TransferIn) Label() string       { return s.Task.Label() }
func (s ReopeningAccount) Label() string { return s.Resume.Label() }
func (s Delivering) Label() string       { return s.Inner.Label() }
func (s Done) Label() string             { return s.TaskLabel }
func (s Failed) Label() string           { return s.TaskLabel }

func (OpeningAccount) isState()   {}
func (TransferOut) isState()      {}
func (Swapping) isState()         {}
func (TransferIn) isState()       {}
func (ReopeningAccount) isState() {}
func (Delivering) isState()       {}
func (Done) isState()             {}
func (Failed) isState()           {}

// NotificationKind is the kind of remote outcome carried by a Notification.
type NotificationKind int

const (
	NotifyResponse NotificationKind = iota + 1
	NotifyError
	NotifyTimeout
	NotifyAlarm
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyResponse:
		return "response"
	case NotifyError:
		return "error"
	case NotifyTimeout:
		return "timeout"
	case NotifyAlarm:
		return "alarm"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// Notification is an inbound event addressed to a workflow.
type Notification struct {
	Kind    NotificationKind
	Payload []byte
}

// Result is the outcome of handling one event.
type Result struct {
	Next  State
	Batch types.Batch
}

// IsTerminal reports whether s accepts no further events.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Done, Failed:
		return true
	default:
		return false
	}
}

// TaskOf returns the task carried by s, or nil for terminal states.
func TaskOf(s State) SwapTask {
	switch st := s.(type) {
	case OpeningAccount:
		return st.Task
	case TransferOut:
		return st.Task
	case Swapping:
		return st.Task
	case TransferIn:
		return st.Task
	case ReopeningAccount:
		return TaskOf(st.Resume)
	case Delivering:
		return TaskOf(st.Inner)
	default:
		return nil
	}
}

// Awaiting reports whether s is parked until a retry alarm fires.
func Awaiting(s State) bool {
	switch st := s.(type) {
	case OpeningAccount:
		return st.AwaitingRetry
	case TransferOut:
		return st.AwaitingRetry
	case Swapping:
		return st.AwaitingRetry
	case TransferIn:
		return st.AwaitingRetry
	case ReopeningAccount:
		return st.AwaitingRetry
	default:
		return false
	}
}
