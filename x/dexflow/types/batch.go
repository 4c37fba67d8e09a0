package types

import (
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Alarm asks the time-alarms service to wake a workflow at FireAt.
type Alarm struct {
	Service TimeAlarmsRef
	FireAt  time.Time
}

// Batch is the set of outbound effects produced by one workflow step.
// Messages are dispatched in order.
type Batch struct {
	Msgs   []sdk.Msg
	Alarms []Alarm
	Events sdk.Events
}

// Merge appends other after b.
func (b Batch) Merge(other Batch) Batch {
	return Batch{
		Msgs:   append(append([]sdk.Msg{}, b.Msgs...), other.Msgs...),
		Alarms: append(append([]Alarm{}, b.Alarms...), other.Alarms...),
		Events: append(append(sdk.Events{}, b.Events...), other.Events...),
	}
}

// IsEmpty reports whether the batch carries no effects.
func (b Batch) IsEmpty() bool {
	return len(b.Msgs) == 0 && len(b.Alarms) == 0 && len(b.Events) == 0
}

// BatchOf wraps messages in a batch.
func BatchOf(msgs ...sdk.Msg) Batch {
	return Batch{Msgs: msgs}
}

// ScheduleAlarm returns a batch holding a single alarm.
func ScheduleAlarm(service TimeAlarmsRef, at time.Time) Batch {
	return Batch{Alarms: []Alarm{{Service: service, FireAt: at}}}
}
