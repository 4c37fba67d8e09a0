package keeper

import (
	"context"

	"cosmossdk.io/store/prefix"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// Workflow queries a workflow by ID
func (k Keeper) Workflow(ctx context.Context, id uint64) (types.WorkflowInfo, error) {
	if id == 0 {
		return types.WorkflowInfo{}, status.Error(codes.InvalidArgument, "workflow id cannot be zero")
	}
	bz := k.getStore(ctx).Get(GetWorkflowKey(id))
	if bz == nil {
		return types.WorkflowInfo{}, status.Errorf(codes.NotFound, "workflow %d not found", id)
	}
	info, err := k.workflowInfo(id, bz)
	if err != nil {
		return types.WorkflowInfo{}, status.Error(codes.Internal, err.Error())
	}
	return info, nil
}

// Workflows queries all workflows with pagination
func (k Keeper) Workflows(ctx context.Context, pageReq *query.PageRequest) ([]types.WorkflowInfo, *query.PageResponse, error) {
	store := prefix.NewStore(k.getStore(ctx), WorkflowKeyPrefix)

	var infos []types.WorkflowInfo
	pageRes, err := query.Paginate(store, pageReq, func(key, value []byte) error {
		info, err := k.workflowInfo(sdk.BigEndianToUint64(key), value)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, nil, status.Error(codes.Internal, err.Error())
	}
	return infos, pageRes, nil
}

// PendingAlarms returns up to limit queued alarms in fire order. Zero means no limit.
func (k Keeper) PendingAlarms(ctx context.Context, limit int) []types.AlarmRecord {
	var alarms []types.AlarmRecord
	k.IterateAlarms(ctx, func(rec types.AlarmRecord) bool {
		alarms = append(alarms, rec)
		return limit > 0 && len(alarms) >= limit
	})
	return alarms
}

func (k Keeper) workflowInfo(id uint64, raw []byte) (types.WorkflowInfo, error) {
	state, err := k.tasks.UnmarshalState(raw)
	if err != nil {
		return types.WorkflowInfo{}, err
	}
	return types.WorkflowInfo{
		ID:            id,
		Stage:         state.Stage().String(),
		Label:         state.Label(),
		AwaitingRetry: workflow.Awaiting(state),
		Terminal:      workflow.IsTerminal(state),
		State:         append([]byte{}, raw...),
	}, nil
}
