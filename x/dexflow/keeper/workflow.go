package keeper

import (
	"context"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-metrics"

	dexflowtelemetry "github.com/paw-chain/dexflow/pkg/telemetry"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// AccountOwner is the interchain account owner of workflow id.
func AccountOwner(id uint64) string {
	return fmt.Sprintf("%s-%d", types.ModuleName, id)
}

// StartWorkflow escrows the task coins from funder and opens the remote
// account on conn. It returns the new workflow id.
func (k Keeper) StartWorkflow(goCtx context.Context, funder sdk.AccAddress, task workflow.SwapTask, conn types.Connection) (id uint64, err error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := workflow.ValidateTask(task); err != nil {
		return 0, err
	}

	id = k.peekNextWorkflowID(ctx)
	_, span := dexflowtelemetry.StartWorkflowSpan(goCtx, id, workflow.StageOpeningAccount.String(), "start")
	defer func() { dexflowtelemetry.EndSpan(span, err) }()

	cacheCtx, write := ctx.CacheContext()
	if err := k.bankKeeper.SendCoinsFromAccountToModule(cacheCtx, funder, types.ModuleName, sdk.NewCoins(task.Coins()...)); err != nil {
		return 0, errorsmod.Wrap(err, "escrow task coins")
	}
	res, err := workflow.Start(k.newEnv(cacheCtx, k.GetParams(cacheCtx)), task, AccountOwner(id), conn)
	if err != nil {
		return 0, err
	}
	k.setNextWorkflowID(cacheCtx, id+1)
	if err := k.apply(cacheCtx, id, nil, res); err != nil {
		return 0, err
	}
	write()

	k.metrics.WorkflowsStarted.WithLabelValues(task.Type()).Inc()
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeWorkflowStarted,
			sdk.NewAttribute(types.AttributeKeyWorkflowID, strconv.FormatUint(id, 10)),
			sdk.NewAttribute(types.AttributeKeyLabel, task.Label()),
			sdk.NewAttribute(types.AttributeKeyTaskType, task.Type()),
			sdk.NewAttribute(types.AttributeKeyOwner, AccountOwner(id)),
		),
	)
	k.Logger(ctx).Info("workflow started", "workflow_id", id, "label", task.Label(), "coins", sdk.NewCoins(task.Coins()...).String())
	return id, nil
}

// GetWorkflow loads and decodes the state of workflow id.
func (k Keeper) GetWorkflow(ctx context.Context, id uint64) (workflow.State, error) {
	bz := k.getStore(ctx).Get(GetWorkflowKey(id))
	if bz == nil {
		return nil, errorsmod.Wrapf(types.ErrWorkflowNotFound, "id %d", id)
	}
	state, err := k.tasks.UnmarshalState(bz)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "decode workflow %d", id)
	}
	return state, nil
}

func (k Keeper) setWorkflow(ctx context.Context, id uint64, state workflow.State) error {
	bz, err := workflow.MarshalState(state)
	if err != nil {
		return errorsmod.Wrapf(err, "encode workflow %d", id)
	}
	k.getStore(ctx).Set(GetWorkflowKey(id), bz)
	return nil
}

// IterateWorkflows calls cb with the raw state of every workflow in id order.
func (k Keeper) IterateWorkflows(ctx context.Context, cb func(id uint64, raw []byte) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), WorkflowKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		id := sdk.BigEndianToUint64(iterator.Key()[len(WorkflowKeyPrefix):])
		if cb(id, iterator.Value()) {
			break
		}
	}
}

func (k Keeper) peekNextWorkflowID(ctx context.Context) uint64 {
	bz := k.getStore(ctx).Get(NextWorkflowIDKey)
	if bz == nil {
		return 1
	}
	return sdk.BigEndianToUint64(bz)
}

func (k Keeper) setNextWorkflowID(ctx context.Context, id uint64) {
	k.getStore(ctx).Set(NextWorkflowIDKey, sdk.Uint64ToBigEndian(id))
}

// apply dispatches res.Batch, persists res.Next and reports the transition.
func (k Keeper) apply(ctx sdk.Context, id uint64, prev workflow.State, res workflow.Result) error {
	// An alarm belongs to the state that scheduled it.
	k.cancelAlarm(ctx, id)
	if err := k.execute(ctx, id, res.Batch); err != nil {
		return err
	}
	if err := k.setWorkflow(ctx, id, res.Next); err != nil {
		return err
	}
	return k.recordTransition(ctx, id, prev, res.Next)
}

func (k Keeper) recordTransition(ctx sdk.Context, id uint64, prev, next workflow.State) error {
	idAttr := sdk.NewAttribute(types.AttributeKeyWorkflowID, strconv.FormatUint(id, 10))
	from := "none"
	if prev != nil {
		from = prev.Stage().String()
	}

	if workflow.Awaiting(next) {
		k.metrics.RetriesScheduled.WithLabelValues(next.Stage().String()).Inc()
	}
	if parked, ok := next.(workflow.Delivering); ok {
		k.metrics.DeliveriesDeferred.WithLabelValues(parked.Pending.Kind.String()).Inc()
	}
	if prev == nil || prev.Stage() != next.Stage() {
		k.metrics.StageTransitions.WithLabelValues(from, next.Stage().String()).Inc()
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeStageEntered,
				idAttr,
				sdk.NewAttribute(types.AttributeKeyLabel, next.Label()),
				sdk.NewAttribute(types.AttributeKeyFromStage, from),
				sdk.NewAttribute(types.AttributeKeyStage, next.Stage().String()),
			),
		)
	}

	switch st := next.(type) {
	case workflow.Done:
		k.metrics.WorkflowsCompleted.WithLabelValues("done", st.Stage().String()).Inc()
		if amount, err := st.AmountOut.Amount.ToLegacyDec().Float64(); err == nil {
			k.metrics.ProceedsOut.WithLabelValues(st.AmountOut.Denom).Add(amount)
		}
		telemetry.IncrCounterWithLabels(
			[]string{types.ModuleName, "workflow", "done"},
			1,
			[]metrics.Label{telemetry.NewLabel("denom", st.AmountOut.Denom)},
		)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeWorkflowDone,
				idAttr,
				sdk.NewAttribute(types.AttributeKeyLabel, st.TaskLabel),
				sdk.NewAttribute(types.AttributeKeyAmountOut, st.AmountOut.String()),
			),
		)
		k.Logger(ctx).Info("workflow done", "workflow_id", id, "label", st.TaskLabel, "amount_out", st.AmountOut.String())
		if k.hooks != nil {
			return k.hooks.AfterWorkflowDone(ctx, id, st.TaskLabel, st.AmountOut)
		}
	case workflow.Failed:
		k.metrics.WorkflowsCompleted.WithLabelValues("failed", st.At.String()).Inc()
		telemetry.IncrCounterWithLabels(
			[]string{types.ModuleName, "workflow", "failed"},
			1,
			[]metrics.Label{telemetry.NewLabel("stage", st.At.String())},
		)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeWorkflowFailed,
				idAttr,
				sdk.NewAttribute(types.AttributeKeyLabel, st.TaskLabel),
				sdk.NewAttribute(types.AttributeKeyStage, st.At.String()),
				sdk.NewAttribute(types.AttributeKeyReason, st.Reason),
			),
		)
		k.Logger(ctx).Error("workflow failed", "workflow_id", id, "label", st.TaskLabel, "stage", st.At.String(), "reason", st.Reason)
		if k.hooks != nil {
			return k.hooks.AfterWorkflowFailed(ctx, id, st.TaskLabel, st.Reason)
		}
	}
	return nil
}
