package dexflow_test

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/cosmos/cosmos-sdk/types/module"
	simtypes "github.com/cosmos/cosmos-sdk/types/simulation"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/dexflow/testutil/keeper"
	"github.com/paw-chain/dexflow/x/dexflow"
	"github.com/paw-chain/dexflow/x/dexflow/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func TestAppModuleBasic_Name(t *testing.T) {
	require.Equal(t, "dexflow", dexflow.AppModuleBasic{}.Name())
}

func TestAppModuleBasic_DefaultGenesisValidates(t *testing.T) {
	amb := dexflow.AppModuleBasic{}
	bz := amb.DefaultGenesis(nil)
	require.NoError(t, amb.ValidateGenesis(nil, nil, bz))

	var genState types.GenesisState
	require.NoError(t, json.Unmarshal(bz, &genState))
	require.Equal(t, types.DefaultParams(), genState.Params)
}

func TestAppModuleBasic_ValidateGenesisRejects(t *testing.T) {
	amb := dexflow.AppModuleBasic{}
	require.Error(t, amb.ValidateGenesis(nil, nil, json.RawMessage(`{`)))

	gs := types.DefaultGenesis()
	gs.Params.MaxAlarmsPerBlock = 0
	bz, err := json.Marshal(gs)
	require.NoError(t, err)
	require.Error(t, amb.ValidateGenesis(nil, nil, bz))
}

func TestAppModule_GenesisRoundTrip(t *testing.T) {
	chain := keepertest.DexflowChain(t)
	am := dexflow.NewAppModule(*chain.Keeper)
	require.Equal(t, uint64(dexflow.ConsensusVersion), am.ConsensusVersion())

	chain.Keeper.ScheduleAlarm(chain.Ctx, 9, keepertest.GenesisTime)
	_, broken := keeper.AlarmTargetsInvariant(*chain.Keeper)(chain.Ctx)
	require.True(t, broken)

	exported := am.ExportGenesis(chain.Ctx, nil)
	require.Panics(t, func() {
		other := keepertest.DexflowChain(t)
		dexflow.NewAppModule(*other.Keeper).InitGenesis(other.Ctx, nil, exported)
	})
}

func TestAppModule_EndBlockFiresAlarms(t *testing.T) {
	chain := keepertest.DexflowChain(t)
	am := dexflow.NewAppModule(*chain.Keeper)

	chain.Keeper.ScheduleAlarm(chain.Ctx, 1, keepertest.GenesisTime.Add(time.Second))
	require.NoError(t, am.EndBlock(chain.Ctx))
	require.Len(t, chain.Keeper.PendingAlarms(chain.Ctx, 0), 1)

	ctx := chain.Ctx.WithBlockTime(keepertest.GenesisTime.Add(time.Second))
	require.NoError(t, am.EndBlock(ctx))
	require.Empty(t, chain.Keeper.PendingAlarms(ctx, 0))
}

func TestAppModule_Simulation(t *testing.T) {
	chain := keepertest.DexflowChain(t)
	am := dexflow.NewAppModule(*chain.Keeper)

	simState := &module.SimulationState{
		Rand:     rand.New(rand.NewSource(7)),
		GenState: map[string]json.RawMessage{},
	}
	am.GenerateGenesisState(simState)
	require.NoError(t, am.ValidateGenesis(nil, nil, simState.GenState[types.ModuleName]))

	sdr := simtypes.StoreDecoderRegistry{}
	am.RegisterStoreDecoder(sdr)
	require.Contains(t, sdr, types.StoreKey)
	require.Empty(t, am.WeightedOperations(module.SimulationState{}))
}
