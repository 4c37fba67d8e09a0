package simulation

import (
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// VenueStoreKey is the store the simulated venue persists under.
const VenueStoreKey = "dexflow_venue"

// Chain is a single-node controller chain running the dexflow keeper
// against a simulated venue.
type Chain struct {
	Keeper   *keeper.Keeper
	Venue    *Venue
	Ctx      sdk.Context
	StoreKey storetypes.StoreKey
}

// NewChain mounts the keeper and venue stores on an in-memory database and
// initializes the module with params.
func NewChain(logger log.Logger, config Config, params types.Params, chainID string, genesisTime time.Time) (*Chain, error) {
	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	venueKey := storetypes.NewKVStoreKey(VenueStoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(venueKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		return nil, err
	}

	venue := NewVenue(venueKey, config)
	k := keeper.NewKeeper(storeKey, venue, venue, venue, venue, venue, tasks.NewRegistry())

	ctx := sdk.NewContext(stateStore, cmtproto.Header{
		ChainID: chainID,
		Height:  1,
		Time:    genesisTime,
	}, false, logger)

	genesis := types.DefaultGenesis()
	genesis.Params = params
	if err := k.InitGenesis(ctx, *genesis); err != nil {
		return nil, err
	}

	return &Chain{Keeper: k, Venue: venue, Ctx: ctx, StoreKey: storeKey}, nil
}

// NextBlock advances the block clock by step and runs the end blocker.
func (c *Chain) NextBlock(step time.Duration) error {
	c.Ctx = c.Ctx.
		WithBlockHeight(c.Ctx.BlockHeight() + 1).
		WithBlockTime(c.Ctx.BlockTime().Add(step))
	return c.Keeper.EndBlocker(c.Ctx)
}
