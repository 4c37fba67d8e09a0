package simulation

import (
	"encoding/json"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/module"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// RandomizedGenState generates a random dexflow genesis with default state
// and randomized timing parameters.
func RandomizedGenState(simState *module.SimulationState) {
	r := simState.Rand

	params := types.DefaultParams()
	params.TransferTimeout = time.Duration(1+r.Intn(30)) * time.Minute
	params.ICATimeout = time.Duration(1+r.Intn(30)) * time.Minute
	params.RetryDelay = time.Duration(5+r.Intn(300)) * time.Second
	params.MaxAlarmsPerBlock = uint32(1 + r.Intn(200))
	if r.Intn(4) == 0 {
		params.AckTip = sdk.NewCoins()
		params.TimeoutTip = sdk.NewCoins()
	}

	genesis := types.DefaultGenesis()
	genesis.Params = params

	bz, err := json.MarshalIndent(genesis, "", " ")
	if err != nil {
		panic(err)
	}
	simState.GenState[types.ModuleName] = bz
}
