package keeper

import (
	"errors"

	sdk "github.com/cosmos/cosmos-sdk/types"

	dexflowtelemetry "github.com/paw-chain/dexflow/pkg/telemetry"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// deliver applies n to workflow id atomically. When the attempt fails its
// effects are discarded and n is parked for re-delivery from an alarm. A
// failed re-delivery fails the workflow. Events the workflow does not expect
// are returned without touching state.
func (k Keeper) deliver(ctx sdk.Context, id uint64, n workflow.Notification) (err error) {
	state, err := k.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	_, span := dexflowtelemetry.StartWorkflowSpan(ctx, id, state.Stage().String(), n.Kind.String())
	defer func() { dexflowtelemetry.EndSpan(span, err) }()

	params := k.GetParams(ctx)
	cacheCtx, write := ctx.CacheContext()
	res, err := workflow.Deliver(k.newEnv(cacheCtx, params), state, n)
	if err == nil {
		err = k.apply(cacheCtx, id, state, res)
	}
	if err == nil {
		write()
		return nil
	}
	if workflow.IsUnexpected(err) {
		k.Logger(ctx).Error("workflow rejected event", "workflow_id", id, "stage", state.Stage().String(), "kind", n.Kind.String(), "error", err)
		return err
	}

	if _, parked := state.(workflow.Delivering); parked {
		return k.fail(ctx, id, state, err)
	}

	k.Logger(ctx).Error("workflow notification not applied, parking for re-delivery",
		"workflow_id", id,
		"stage", state.Stage().String(),
		"kind", n.Kind.String(),
		"error", err,
	)
	deferred, deferErr := workflow.DeliveryFailed(k.newEnv(ctx, params), state, n)
	if deferErr != nil {
		return k.fail(ctx, id, state, errors.Join(err, deferErr))
	}
	return k.apply(ctx, id, state, deferred)
}

// fail moves workflow id to Failed. If the task's failure handling cannot be
// applied the failure is recorded without it.
func (k Keeper) fail(ctx sdk.Context, id uint64, state workflow.State, cause error) error {
	cacheCtx, write := ctx.CacheContext()
	res, err := workflow.Fail(k.newEnv(cacheCtx, k.GetParams(ctx)), state, cause)
	if err == nil {
		err = k.apply(cacheCtx, id, state, res)
	}
	if err == nil {
		write()
		return nil
	}
	k.Logger(ctx).Error("failure handler not applied", "workflow_id", id, "error", err)
	return k.apply(ctx, id, state, workflow.Result{Next: workflow.FailedFrom(state, cause)})
}
