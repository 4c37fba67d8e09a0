package keeper_test

import (
	"github.com/cosmos/cosmos-sdk/types/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

func (s *KeeperTestSuite) TestWorkflowQuery() {
	_, err := s.keeper().Workflow(s.ctx(), 0)
	s.Require().Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.keeper().Workflow(s.ctx(), 42)
	s.Require().Equal(codes.NotFound, status.Code(err))

	id := s.startBuyBack()
	info, err := s.keeper().Workflow(s.ctx(), id)
	s.Require().NoError(err)
	s.Require().Equal(id, info.ID)
	s.Require().Equal(workflow.StageOpeningAccount.String(), info.Stage)
	s.Require().Equal("buy-back/upaw", info.Label)
	s.Require().False(info.AwaitingRetry)
	s.Require().False(info.Terminal)
	s.Require().Contains(string(info.State), `"version":2`)
}

func (s *KeeperTestSuite) TestWorkflowsPagination() {
	for i := 0; i < 3; i++ {
		s.startBuyBack()
	}

	page, res, err := s.keeper().Workflows(s.ctx(), &query.PageRequest{Limit: 2, CountTotal: true})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Require().Equal(uint64(3), res.Total)
	s.Require().NotNil(res.NextKey)
	s.Require().Equal(uint64(1), page[0].ID)
	s.Require().Equal(uint64(2), page[1].ID)

	rest, res, err := s.keeper().Workflows(s.ctx(), &query.PageRequest{Key: res.NextKey})
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Require().Equal(uint64(3), rest[0].ID)
	s.Require().Nil(res.NextKey)
}

func (s *KeeperTestSuite) TestPendingAlarmsLimit() {
	now := s.ctx().BlockTime()
	for id := uint64(1); id <= 3; id++ {
		s.keeper().ScheduleAlarm(s.ctx(), id, now.Add(-1))
	}
	s.Require().Len(s.keeper().PendingAlarms(s.ctx(), 0), 3)
	s.Require().Len(s.keeper().PendingAlarms(s.ctx(), 2), 2)
}
