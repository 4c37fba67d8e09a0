package keeper_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/paw-chain/dexflow/testutil/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const maxBlocks = 400

// Under arbitrary relayer faults a buy-back either completes with the exact
// proceeds and an empty escrow, or fails without paying out.
func TestBuyBackUnderRelayerFaults(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		faults := simulation.Faults{
			TimeoutRate: rapid.Float64Range(0, 0.3).Draw(rt, "timeoutRate"),
			ErrorRate:   rapid.Float64Range(0, 0.3).Draw(rt, "errorRate"),
		}
		seed := rapid.Int64().Draw(rt, "seed")

		chain := keepertest.DexflowChain(t)
		r, err := simulation.NewRelayer(chain.Venue, chain.Keeper, faults, seed, relayer)
		require.NoError(rt, err)

		profit := sdk.NewCoins(sdk.NewInt64Coin("uatom", 1000), sdk.NewInt64Coin("uosmo", 2000))
		keepertest.FundAccount(chain, funder, profit)
		task, err := tasks.NewBuyBack(tasks.NewBase(
			types.OracleRef{Address: "oracle", BaseDenom: "uusdc"},
			types.TimeAlarmsRef{Address: "alarms"},
		), treasury, profit, "upaw")
		require.NoError(rt, err)
		id, err := chain.Keeper.StartWorkflow(chain.Ctx, funder, task, testConn)
		require.NoError(rt, err)

		var info types.WorkflowInfo
		for block := 0; block < maxBlocks; block++ {
			_, err := r.RelayAll(chain.Ctx, 100)
			require.NoError(rt, err)
			require.NoError(rt, chain.NextBlock(time.Minute))

			info, err = chain.Keeper.Workflow(chain.Ctx, id)
			require.NoError(rt, err)
			if info.Terminal {
				break
			}
		}
		require.True(rt, info.Terminal, "workflow still in %s after %d blocks", info.Stage, maxBlocks)

		paid := chain.Venue.Balances(chain.Ctx, treasury).AmountOf("upaw")
		if info.Stage == workflow.StageFailed.String() {
			require.True(rt, paid.IsZero())
			return
		}
		require.Equal(rt, workflow.StageDone.String(), info.Stage)
		require.Equal(rt, sdkmath.NewInt(5467), paid)

		escrow := chain.Venue.Balances(chain.Ctx, chain.Keeper.ModuleAddress())
		for _, denom := range []string{"uatom", "uosmo", "upaw"} {
			require.True(rt, escrow.AmountOf(denom).IsZero(), denom)
		}
		st, err := chain.Keeper.GetWorkflow(chain.Ctx, id)
		require.NoError(rt, err)
		done := st.(workflow.Done)
		require.Equal(rt, sdk.NewInt64Coin("upaw", 5467), done.AmountOut)
	})
}
