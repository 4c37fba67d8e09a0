package keeper_test

import (
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/suite"

	keepertest "github.com/paw-chain/dexflow/testutil/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

var (
	funder   = sdk.AccAddress([]byte("funder______________"))
	treasury = sdk.AccAddress([]byte("treasury____________"))
	lender   = sdk.AccAddress([]byte("lender______________"))
	relayer  = sdk.AccAddress([]byte("relayer_____________"))

	testConn = types.Connection{
		ConnectionID:          "connection-0",
		TransferChannel:       "channel-7",
		RemoteTransferChannel: "channel-8",
	}
)

type KeeperTestSuite struct {
	suite.Suite
	chain   *simulation.Chain
	relayer *simulation.Relayer
}

func (s *KeeperTestSuite) SetupTest() {
	s.chain = keepertest.DexflowChain(s.T())
	r, err := simulation.NewRelayer(s.chain.Venue, s.chain.Keeper, simulation.Faults{}, 1, relayer)
	s.Require().NoError(err)
	s.relayer = r
}

func TestKeeperTestSuite(t *testing.T) {
	suite.Run(t, new(KeeperTestSuite))
}

func (s *KeeperTestSuite) keeper() *keeper.Keeper { return s.chain.Keeper }
func (s *KeeperTestSuite) ctx() sdk.Context       { return s.chain.Ctx }

func (s *KeeperTestSuite) base() tasks.Base {
	return tasks.NewBase(
		types.OracleRef{Address: "oracle", BaseDenom: "uusdc"},
		types.TimeAlarmsRef{Address: "alarms"},
	)
}

// startBuyBack starts a workflow swapping 1000uatom and 2000uosmo into upaw.
// At venue prices the proceeds are 4970 + 497 = 5467upaw.
func (s *KeeperTestSuite) startBuyBack() uint64 {
	profit := sdk.NewCoins(sdk.NewInt64Coin("uatom", 1000), sdk.NewInt64Coin("uosmo", 2000))
	keepertest.FundAccount(s.chain, funder, profit)
	task, err := tasks.NewBuyBack(s.base(), treasury, profit, "upaw")
	s.Require().NoError(err)

	id, err := s.keeper().StartWorkflow(s.ctx(), funder, task, testConn)
	s.Require().NoError(err)
	return id
}

// startClose starts a workflow selling 1000uatom for uusdc, which yields
// 9970uusdc at venue prices.
func (s *KeeperTestSuite) startClose() uint64 {
	asset := sdk.NewInt64Coin("uatom", 1000)
	keepertest.FundAccount(s.chain, funder, sdk.NewCoins(asset))
	task, err := tasks.NewClosePosition(s.base(), "lease-1", tasks.CloseLiquidation, lender, asset, "uusdc")
	s.Require().NoError(err)

	id, err := s.keeper().StartWorkflow(s.ctx(), funder, task, testConn)
	s.Require().NoError(err)
	return id
}

// relay completes the oldest outbound item with outcome.
func (s *KeeperTestSuite) relay(outcome simulation.Outcome) simulation.Outbound {
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().NotEmpty(pending, "nothing to relay")
	relayed, err := s.relayer.Relay(s.ctx(), pending[0], outcome)
	s.Require().NoError(err)
	return relayed.Packet
}

func (s *KeeperTestSuite) relayAcks(n int) {
	for i := 0; i < n; i++ {
		s.relay(simulation.OutcomeAck)
	}
}

func (s *KeeperTestSuite) info(id uint64) types.WorkflowInfo {
	info, err := s.keeper().Workflow(s.ctx(), id)
	s.Require().NoError(err)
	return info
}

func (s *KeeperTestSuite) state(id uint64) workflow.State {
	st, err := s.keeper().GetWorkflow(s.ctx(), id)
	s.Require().NoError(err)
	return st
}

func (s *KeeperTestSuite) requireStage(id uint64, stage workflow.Stage) {
	s.Require().Equal(stage.String(), s.info(id).Stage)
}

func (s *KeeperTestSuite) eventAttrs(eventType string) []map[string]string {
	var out []map[string]string
	for _, ev := range s.ctx().EventManager().Events() {
		if ev.Type != eventType {
			continue
		}
		attrs := map[string]string{}
		for _, a := range ev.Attributes {
			attrs[a.Key] = a.Value
		}
		out = append(out, attrs)
	}
	return out
}
