package keeper_test

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	keepertest "github.com/paw-chain/dexflow/testutil/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/keeper"
	v2 "github.com/paw-chain/dexflow/x/dexflow/migrations/v2"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

func (s *KeeperTestSuite) TestMigrate1to2() {
	acc, err := types.NewRemoteAccount(keeper.AccountOwner(1), "venue1legacy", testConn)
	s.Require().NoError(err)
	task, err := tasks.NewBuyBack(s.base(), treasury, sdk.NewCoins(sdk.NewInt64Coin("uatom", 10), sdk.NewInt64Coin("uosmo", 20)), "upaw")
	s.Require().NoError(err)
	envelope, err := workflow.EncodeTask(task.WithAccount(acc))
	s.Require().NoError(err)

	store := s.ctx().KVStore(s.chain.StoreKey)
	legacy := func(st v2.LegacyState) []byte {
		bz, err := json.Marshal(st)
		s.Require().NoError(err)
		return bz
	}
	store.Set(keeper.GetWorkflowKey(1), legacy(v2.LegacyState{Stage: "transfer_out", Task: &envelope, CoinIndex: 1, LastCoinIndex: 1}))
	store.Set(keeper.GetWorkflowKey(2), legacy(v2.LegacyState{Stage: "swapping", Task: &envelope}))
	store.Set(keeper.GetWorkflowKey(3), legacy(v2.LegacyState{Stage: "done", Label: task.Label(), AmountOut: &sdk.Coin{Denom: "upaw", Amount: sdkmath.NewInt(7)}}))
	// v1 queued alarms without arming them, sometimes more than one per workflow.
	store.Set(keeper.GetAlarmKey(s.ctx().BlockTime().Add(-time.Minute), 1), []byte{})
	store.Set(keeper.GetAlarmKey(s.ctx().BlockTime(), 1), []byte{})

	_, err = s.keeper().GetWorkflow(s.ctx(), 1)
	s.Require().ErrorIs(err, types.ErrUnknownStateVersion)

	migrator := keeper.NewMigrator(*s.keeper())
	s.Require().NoError(migrator.Migrate1to2(s.ctx()))

	out, ok := s.state(1).(workflow.TransferOut)
	s.Require().True(ok)
	s.Require().Equal(types.CoinCursor{Current: 1, Last: 1}, out.Cursor)
	s.Require().True(out.AwaitingRetry)
	s.Require().Equal(acc, out.Task.Account())

	swapping, ok := s.state(2).(workflow.Swapping)
	s.Require().True(ok)
	s.Require().False(swapping.AwaitingRetry)

	alarms := s.keeper().PendingAlarms(s.ctx(), 0)
	s.Require().Len(alarms, 1)
	s.Require().True(s.ctx().BlockTime().Equal(alarms[0].FireAt))
	msg, broken := keeper.AlarmTargetsInvariant(*s.keeper())(s.ctx())
	s.Require().False(broken, msg)

	done, ok := s.state(3).(workflow.Done)
	s.Require().True(ok)
	s.Require().Equal(task.Label(), done.TaskLabel)

	// Running again leaves migrated states untouched.
	before := store.Get(keeper.GetWorkflowKey(1))
	s.Require().NoError(migrator.Migrate1to2(s.ctx()))
	s.Require().Equal(before, store.Get(keeper.GetWorkflowKey(1)))

	// The migrated workflow resumes from its alarm.
	keepertest.FundAccount(s.chain, s.keeper().ModuleAddress(), task.Coins())
	s.Require().NoError(s.chain.NextBlock(0))
	s.requireStage(1, workflow.StageTransferOut)
	s.Require().False(s.info(1).AwaitingRetry)
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(sdk.NewInt64Coin("uosmo", 20), pending[0].Token)
}
