package keeper

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// GenesisTime is the block time of a fresh test chain.
var GenesisTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// DexflowChain creates a test chain running the dexflow keeper against a
// simulated venue quoting uusdc=1, uatom=10, uosmo=0.5 and upaw=2.
func DexflowChain(t testing.TB) *simulation.Chain {
	return DexflowChainWithParams(t, types.DefaultParams())
}

// DexflowChainWithParams is DexflowChain with custom module params.
func DexflowChainWithParams(t testing.TB, params types.Params) *simulation.Chain {
	chain, err := simulation.NewChain(log.NewNopLogger(), simulation.DefaultConfig(), params, "dexflow-test-1", GenesisTime)
	require.NoError(t, err)

	for denom, price := range map[string]sdkmath.LegacyDec{
		"uusdc": sdkmath.LegacyOneDec(),
		"uatom": sdkmath.LegacyNewDec(10),
		"uosmo": sdkmath.LegacyNewDecWithPrec(5, 1),
		"upaw":  sdkmath.LegacyNewDec(2),
	} {
		chain.Venue.SetPrice(chain.Ctx, denom, price)
	}
	FundAccount(chain, chain.Keeper.ModuleAddress(), sdk.NewCoins(sdk.NewInt64Coin(types.DefaultFeeDenom, 1_000_000_000)))
	return chain
}

// FundAccount mints coins to addr on the test chain.
func FundAccount(chain *simulation.Chain, addr sdk.AccAddress, coins sdk.Coins) {
	chain.Venue.Fund(chain.Ctx, addr, coins)
}
