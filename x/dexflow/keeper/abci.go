package keeper

import (
	"context"
	"time"

	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// EndBlocker fires due alarms and expires stalled account registrations.
func (k Keeper) EndBlocker(goCtx context.Context) error {
	defer telemetry.ModuleMeasureSince(types.ModuleName, time.Now(), telemetry.MetricKeyEndBlocker)
	ctx := sdk.UnwrapSDKContext(goCtx)

	k.expireRegistrations(ctx)
	if fired := k.ProcessDueAlarms(ctx); fired > 0 {
		k.Logger(ctx).Debug("processed workflow alarms", "count", fired, "height", ctx.BlockHeight())
	}
	return nil
}
