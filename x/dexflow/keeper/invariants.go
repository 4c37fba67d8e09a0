package keeper

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// RegisterInvariants registers the dexflow module invariants.
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "workflow-states", WorkflowStatesInvariant(k))
	ir.RegisterRoute(types.ModuleName, "alarm-targets", AlarmTargetsInvariant(k))
	ir.RegisterRoute(types.ModuleName, "pending-targets", PendingTargetsInvariant(k))
}

// AllInvariants runs every dexflow invariant.
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		for _, inv := range []sdk.Invariant{
			WorkflowStatesInvariant(k),
			AlarmTargetsInvariant(k),
			PendingTargetsInvariant(k),
		} {
			if res, stop := inv(ctx); stop {
				return res, stop
			}
		}
		return "", false
	}
}

// WorkflowStatesInvariant checks that every stored workflow decodes.
func WorkflowStatesInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var broken []string
		k.IterateWorkflows(ctx, func(id uint64, raw []byte) bool {
			if _, err := k.tasks.UnmarshalState(raw); err != nil {
				broken = append(broken, fmt.Sprintf("workflow %d: %v", id, err))
			}
			return false
		})
		return sdk.FormatInvariant(types.ModuleName, "workflow-states",
			fmt.Sprintf("%d undecodable workflows %v", len(broken), broken)), len(broken) > 0
	}
}

// AlarmTargetsInvariant checks that every queued alarm names a stored
// workflow and is the one alarm that workflow is armed with.
func AlarmTargetsInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var dangling, unarmed []uint64
		k.IterateAlarms(ctx, func(rec types.AlarmRecord) bool {
			if !k.hasWorkflow(ctx, rec.WorkflowID) {
				dangling = append(dangling, rec.WorkflowID)
			}
			if armed, ok := k.armedAlarm(ctx, rec.WorkflowID); !ok || !armed.Equal(rec.FireAt) {
				unarmed = append(unarmed, rec.WorkflowID)
			}
			return false
		})
		broken := len(dangling) > 0 || len(unarmed) > 0
		return sdk.FormatInvariant(types.ModuleName, "alarm-targets",
			fmt.Sprintf("alarms for unknown workflows %v, superseded alarms for workflows %v", dangling, unarmed)), broken
	}
}

// PendingTargetsInvariant checks that every in-flight packet and account
// registration names a stored workflow.
func PendingTargetsInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var dangling []string
		k.IteratePendingPackets(ctx, func(rec types.PendingPacketRecord) bool {
			if !k.hasWorkflow(ctx, rec.WorkflowID) {
				dangling = append(dangling, fmt.Sprintf("%s/%s/%d", rec.PortID, rec.ChannelID, rec.Sequence))
			}
			return false
		})
		k.IteratePendingRegistrations(ctx, func(rec types.PendingRegistrationRecord) bool {
			if !k.hasWorkflow(ctx, rec.WorkflowID) {
				dangling = append(dangling, rec.PortID)
			}
			return false
		})
		return sdk.FormatInvariant(types.ModuleName, "pending-targets",
			fmt.Sprintf("in-flight requests for unknown workflows %v", dangling)), len(dangling) > 0
	}
}

func (k Keeper) hasWorkflow(ctx sdk.Context, id uint64) bool {
	return k.getStore(ctx).Has(GetWorkflowKey(id))
}
