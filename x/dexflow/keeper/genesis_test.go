package keeper_test

import (
	"encoding/json"
	"time"

	keepertest "github.com/paw-chain/dexflow/testutil/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func (s *KeeperTestSuite) TestExportImportGenesis() {
	first := s.startBuyBack()
	s.relayAcks(2)
	s.relay(simulation.OutcomeTimeout)
	second := s.startBuyBack()

	exported, err := s.keeper().ExportGenesis(s.ctx())
	s.Require().NoError(err)
	s.Require().NoError(exported.Validate())
	s.Require().Equal(uint64(3), exported.NextWorkflowID)
	s.Require().Len(exported.Workflows, 2)
	s.Require().Equal(first, exported.Workflows[0].ID)
	s.Require().Equal(second, exported.Workflows[1].ID)
	s.Require().Len(exported.Alarms, 1)
	s.Require().Len(exported.PendingRegistrations, 1)
	s.Require().Empty(exported.PendingPackets)

	other := keepertest.DexflowChain(s.T())
	s.Require().NoError(other.Keeper.InitGenesis(other.Ctx, *exported))
	reexported, err := other.Keeper.ExportGenesis(other.Ctx)
	s.Require().NoError(err)

	want, err := json.Marshal(exported)
	s.Require().NoError(err)
	got, err := json.Marshal(reexported)
	s.Require().NoError(err)
	s.Require().JSONEq(string(want), string(got))
}

func (s *KeeperTestSuite) TestInitGenesisRejectsUndecodableWorkflow() {
	genesis := types.DefaultGenesis()
	genesis.NextWorkflowID = 2
	genesis.Workflows = []types.WorkflowRecord{{ID: 1, State: json.RawMessage(`{"version":1,"stage":"done","state":{}}`)}}

	err := s.keeper().InitGenesis(s.ctx(), *genesis)
	s.Require().ErrorIs(err, types.ErrUnknownStateVersion)
}

func (s *KeeperTestSuite) TestInitGenesisRejectsDanglingAlarm() {
	genesis := types.DefaultGenesis()
	genesis.Alarms = []types.AlarmRecord{{WorkflowID: 4, FireAt: time.Now()}}
	s.Require().Error(s.keeper().InitGenesis(s.ctx(), *genesis))
}
