package keeper

import (
	"context"
	"strconv"
	"time"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// ScheduleAlarm queues a wake-up for workflow id at fireAt. A workflow has at
// most one alarm: scheduling replaces the previous one.
func (k Keeper) ScheduleAlarm(ctx sdk.Context, id uint64, fireAt time.Time) {
	k.cancelAlarm(ctx, id)
	k.setAlarm(ctx, id, fireAt)
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeAlarmScheduled,
			sdk.NewAttribute(types.AttributeKeyWorkflowID, strconv.FormatUint(id, 10)),
			sdk.NewAttribute(types.AttributeKeyFireAt, fireAt.UTC().Format(time.RFC3339Nano)),
		),
	)
}

func (k Keeper) setAlarm(ctx context.Context, id uint64, fireAt time.Time) {
	store := k.getStore(ctx)
	store.Set(GetAlarmKey(fireAt, id), []byte{})
	store.Set(GetArmedAlarmKey(id), sdk.Uint64ToBigEndian(uint64(fireAt.UnixNano())))
}

// armedAlarm returns the fire time of the alarm workflow id is waiting for.
func (k Keeper) armedAlarm(ctx context.Context, id uint64) (time.Time, bool) {
	bz := k.getStore(ctx).Get(GetArmedAlarmKey(id))
	if bz == nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(sdk.BigEndianToUint64(bz))).UTC(), true
}

// cancelAlarm removes the alarm of workflow id, if any.
func (k Keeper) cancelAlarm(ctx context.Context, id uint64) {
	fireAt, ok := k.armedAlarm(ctx, id)
	if !ok {
		return
	}
	store := k.getStore(ctx)
	store.Delete(GetAlarmKey(fireAt, id))
	store.Delete(GetArmedAlarmKey(id))
}

// IterateAlarms calls cb for every queued alarm in fire order.
func (k Keeper) IterateAlarms(ctx context.Context, cb func(rec types.AlarmRecord) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), AlarmQueueKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		fireAt, id, err := ParseAlarmKey(iterator.Key())
		if err != nil {
			panic(err)
		}
		if cb(types.AlarmRecord{WorkflowID: id, FireAt: fireAt}) {
			break
		}
	}
}

// dueAlarms returns up to limit alarms due at or before now, oldest first.
func (k Keeper) dueAlarms(ctx sdk.Context, now time.Time, limit uint32) []types.AlarmRecord {
	store := k.getStore(ctx)
	iterator := store.Iterator(AlarmQueueKeyPrefix, GetAlarmQueueEndKey(now))
	defer iterator.Close()

	var due []types.AlarmRecord
	for ; iterator.Valid() && uint32(len(due)) < limit; iterator.Next() {
		fireAt, id, err := ParseAlarmKey(iterator.Key())
		if err != nil {
			panic(err)
		}
		due = append(due, types.AlarmRecord{WorkflowID: id, FireAt: fireAt})
	}
	return due
}

// ProcessDueAlarms fires the alarms due at the current block time, up to
// the per-block budget, and returns how many fired. Superseded alarms count
// against the budget but do not fire.
func (k Keeper) ProcessDueAlarms(ctx sdk.Context) int {
	params := k.GetParams(ctx)
	due := k.dueAlarms(ctx, ctx.BlockTime(), params.MaxAlarmsPerBlock)
	fired := 0

	for _, alarm := range due {
		if armed, ok := k.armedAlarm(ctx, alarm.WorkflowID); !ok || !armed.Equal(alarm.FireAt) {
			k.getStore(ctx).Delete(GetAlarmKey(alarm.FireAt, alarm.WorkflowID))
			k.Logger(ctx).Debug("dropped superseded alarm", "workflow_id", alarm.WorkflowID, "fire_at", alarm.FireAt)
			continue
		}
		k.cancelAlarm(ctx, alarm.WorkflowID)
		fired++
		k.metrics.AlarmsFired.Inc()
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeAlarmFired,
				sdk.NewAttribute(types.AttributeKeyWorkflowID, strconv.FormatUint(alarm.WorkflowID, 10)),
				sdk.NewAttribute(types.AttributeKeyFireAt, alarm.FireAt.Format(time.RFC3339Nano)),
			),
		)
		if err := k.deliver(ctx, alarm.WorkflowID, workflow.Notification{Kind: workflow.NotifyAlarm}); err != nil {
			k.Logger(ctx).Error("alarm not applied", "workflow_id", alarm.WorkflowID, "fire_at", alarm.FireAt, "error", err)
		}
	}

	backlog := len(k.dueAlarms(ctx, ctx.BlockTime(), 1))
	k.metrics.AlarmBacklog.Set(float64(backlog))
	return fired
}

// expireRegistrations reports account handshakes still open past their
// deadline as timeouts. The registration stays indexed so that a late
// acknowledgement still reaches the workflow.
func (k Keeper) expireRegistrations(ctx sdk.Context) {
	now := ctx.BlockTime()
	var expired []types.PendingRegistrationRecord
	k.IteratePendingRegistrations(ctx, func(rec types.PendingRegistrationRecord) bool {
		if !rec.TimedOut && !rec.Deadline.After(now) {
			expired = append(expired, rec)
		}
		return false
	})

	for _, rec := range expired {
		k.setPendingRegistration(ctx, rec.PortID, rec.WorkflowID, rec.Deadline, true)
		k.Logger(ctx).Info("account registration timed out", "workflow_id", rec.WorkflowID, "port_id", rec.PortID)
		if err := k.deliver(ctx, rec.WorkflowID, workflow.Notification{Kind: workflow.NotifyTimeout}); err != nil {
			k.Logger(ctx).Error("registration timeout not applied", "workflow_id", rec.WorkflowID, "error", err)
		}
	}
}
