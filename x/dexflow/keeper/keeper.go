package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// Keeper of the dexflow store
type Keeper struct {
	storeKey       storetypes.StoreKey
	bankKeeper     types.BankKeeper
	transferKeeper types.TransferKeeper
	icaKeeper      types.ICAControllerKeeper
	feeKeeper      types.FeeKeeper
	oracleKeeper   types.OracleKeeper
	tasks          *workflow.TaskRegistry
	hooks          types.DexflowHooks
	metrics        *DexflowMetrics
}

// NewKeeper creates a new dexflow Keeper instance
func NewKeeper(
	key storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	transferKeeper types.TransferKeeper,
	icaKeeper types.ICAControllerKeeper,
	feeKeeper types.FeeKeeper,
	oracleKeeper types.OracleKeeper,
	tasks *workflow.TaskRegistry,
) *Keeper {
	return &Keeper{
		storeKey:       key,
		bankKeeper:     bankKeeper,
		transferKeeper: transferKeeper,
		icaKeeper:      icaKeeper,
		feeKeeper:      feeKeeper,
		oracleKeeper:   oracleKeeper,
		tasks:          tasks,
		metrics:        NewDexflowMetrics(),
	}
}

// SetHooks sets the workflow hooks. It may be called once.
func (k *Keeper) SetHooks(h types.DexflowHooks) *Keeper {
	if k.hooks != nil {
		panic("cannot set dexflow hooks twice")
	}
	k.hooks = h
	return k
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx sdk.Context) log.Logger {
	return ctx.Logger().With("module", fmt.Sprintf("x/%s", types.ModuleName))
}

// ModuleAddress is the account that escrows workflow funds and signs outbound transfers.
func (k Keeper) ModuleAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(types.ModuleName)
}

// Tasks returns the registry used to decode persisted tasks.
func (k Keeper) Tasks() *workflow.TaskRegistry {
	return k.tasks
}

// getStore returns the KVStore for the dexflow module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	return sdkCtx.KVStore(k.storeKey)
}

func (k Keeper) newEnv(ctx sdk.Context, params types.Params) workflow.Env {
	host := ibcHost{ctx: ctx, k: k, params: params}
	return workflow.NewEnv(ctx.BlockTime(), host, oracleRouter{ctx: ctx, oracle: k.oracleKeeper}, params)
}
