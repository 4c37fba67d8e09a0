package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// InitGenesis initializes the dexflow module's state from a genesis state.
// Every workflow must decode with the keeper's task registry.
func (k Keeper) InitGenesis(ctx context.Context, genState types.GenesisState) error {
	if err := genState.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	if err := k.SetParams(ctx, genState.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}
	k.setNextWorkflowID(ctx, genState.NextWorkflowID)

	for _, wf := range genState.Workflows {
		state, err := k.tasks.UnmarshalState(wf.State)
		if err != nil {
			return fmt.Errorf("invalid workflow %d: %w", wf.ID, err)
		}
		if err := k.setWorkflow(ctx, wf.ID, state); err != nil {
			return err
		}
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	for _, alarm := range genState.Alarms {
		k.setAlarm(sdkCtx, alarm.WorkflowID, alarm.FireAt)
	}
	for _, p := range genState.PendingPackets {
		k.setPendingPacket(ctx, p.PortID, p.ChannelID, p.Sequence, p.WorkflowID)
	}
	for _, r := range genState.PendingRegistrations {
		k.setPendingRegistration(ctx, r.PortID, r.WorkflowID, r.Deadline, r.TimedOut)
	}

	k.Logger(sdkCtx).Info("initialized dexflow genesis",
		"workflows", len(genState.Workflows),
		"alarms", len(genState.Alarms),
		"pending_packets", len(genState.PendingPackets),
	)
	return nil
}

// ExportGenesis returns the dexflow module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	genesis := types.DefaultGenesis()
	genesis.Params = k.GetParams(ctx)
	genesis.NextWorkflowID = k.peekNextWorkflowID(ctx)

	var iterErr error
	k.IterateWorkflows(ctx, func(id uint64, raw []byte) bool {
		if _, err := k.tasks.UnmarshalState(raw); err != nil {
			iterErr = fmt.Errorf("workflow %d: %w", id, err)
			return true
		}
		genesis.Workflows = append(genesis.Workflows, types.WorkflowRecord{ID: id, State: append([]byte{}, raw...)})
		return false
	})
	if iterErr != nil {
		return nil, iterErr
	}

	k.IterateAlarms(ctx, func(rec types.AlarmRecord) bool {
		genesis.Alarms = append(genesis.Alarms, rec)
		return false
	})
	k.IteratePendingPackets(ctx, func(rec types.PendingPacketRecord) bool {
		genesis.PendingPackets = append(genesis.PendingPackets, rec)
		return false
	})
	k.IteratePendingRegistrations(ctx, func(rec types.PendingRegistrationRecord) bool {
		genesis.PendingRegistrations = append(genesis.PendingRegistrations, rec)
		return false
	})

	return genesis, nil
}
