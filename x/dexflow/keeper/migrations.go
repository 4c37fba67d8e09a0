package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	v2 "github.com/paw-chain/dexflow/x/dexflow/migrations/v2"
)

// Migrator handles in-place store migrations for the dexflow module.
type Migrator struct {
	keeper Keeper
}

// NewMigrator returns a new Migrator instance for the dexflow module.
func NewMigrator(keeper Keeper) Migrator {
	return Migrator{keeper: keeper}
}

// Migrate1to2 rewrites every stored workflow into the versioned envelope.
// It is idempotent.
func (m Migrator) Migrate1to2(ctx sdk.Context) error {
	ctx.Logger().Info("Executing dexflow module migration from v1 to v2")
	return v2.Migrate(ctx, m.keeper.storeKey, m.keeper.tasks)
}
