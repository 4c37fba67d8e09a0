package keeper_test

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

func (s *KeeperTestSuite) TestStartWorkflowEscrowsAndRegisters() {
	id := s.startBuyBack()
	s.Require().Equal(uint64(1), id)

	s.Require().True(s.chain.Venue.Balances(s.ctx(), funder).IsZero())
	escrow := s.chain.Venue.Balances(s.ctx(), s.keeper().ModuleAddress())
	s.Require().Equal(sdkmath.NewInt(1000), escrow.AmountOf("uatom"))
	s.Require().Equal(sdkmath.NewInt(2000), escrow.AmountOf("uosmo"))

	s.requireStage(id, workflow.StageOpeningAccount)
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(simulation.PacketHandshake, pending[0].Kind)
	s.Require().Equal("icacontroller-dexflow-1", pending[0].PortID)

	s.Require().Len(s.eventAttrs(types.EventTypeWorkflowStarted), 1)
}

func (s *KeeperTestSuite) TestStartWorkflowRejectsUnfundedTask() {
	task, err := tasks.NewBuyBack(s.base(), treasury, sdk.NewCoins(sdk.NewInt64Coin("uatom", 5)), "upaw")
	s.Require().NoError(err)

	_, err = s.keeper().StartWorkflow(s.ctx(), funder, task, testConn)
	s.Require().Error(err)

	_, err = s.keeper().GetWorkflow(s.ctx(), 1)
	s.Require().ErrorIs(err, types.ErrWorkflowNotFound)
	s.Require().Empty(s.chain.Venue.Pending(s.ctx()))
}

func (s *KeeperTestSuite) TestStartWorkflowRejectsInvalidConnection() {
	funds := sdk.NewCoins(sdk.NewInt64Coin("uatom", 5))
	s.chain.Venue.Fund(s.ctx(), funder, funds)
	task, err := tasks.NewBuyBack(s.base(), treasury, funds, "upaw")
	s.Require().NoError(err)

	_, err = s.keeper().StartWorkflow(s.ctx(), funder, task, types.Connection{ConnectionID: "bad id"})
	s.Require().ErrorIs(err, types.ErrInvalidConnection)
	s.Require().Equal(funds, s.chain.Venue.Balances(s.ctx(), funder))
}

func (s *KeeperTestSuite) TestHappyPath() {
	id := s.startBuyBack()

	s.relay(simulation.OutcomeAck) // account
	s.requireStage(id, workflow.StageTransferOut)
	s.relay(simulation.OutcomeAck) // uatom
	s.requireStage(id, workflow.StageTransferOut)
	s.relay(simulation.OutcomeAck) // uosmo
	s.requireStage(id, workflow.StageSwapping)
	s.relay(simulation.OutcomeAck) // swaps
	s.requireStage(id, workflow.StageTransferIn)
	s.relay(simulation.OutcomeAck) // proceeds
	s.requireStage(id, workflow.StageDone)

	done, ok := s.state(id).(workflow.Done)
	s.Require().True(ok)
	s.Require().Equal(sdk.NewInt64Coin("upaw", 5467), done.AmountOut)
	s.Require().Equal(sdkmath.NewInt(5467), s.chain.Venue.Balances(s.ctx(), treasury).AmountOf("upaw"))

	escrow := s.chain.Venue.Balances(s.ctx(), s.keeper().ModuleAddress())
	for _, denom := range []string{"uatom", "uosmo", "upaw"} {
		s.Require().True(escrow.AmountOf(denom).IsZero(), denom)
	}
	s.Require().Equal(sdkmath.NewInt(2000), s.chain.Venue.Balances(s.ctx(), relayer).AmountOf(types.DefaultFeeDenom))

	s.Require().Empty(s.chain.Venue.Pending(s.ctx()))
	s.Require().Empty(s.keeper().PendingAlarms(s.ctx(), 0))
	s.Require().Len(s.eventAttrs(tasks.EventTypeProfitBoughtBack), 1)

	doneEvents := s.eventAttrs(types.EventTypeWorkflowDone)
	s.Require().Len(doneEvents, 1)
	s.Require().Equal("5467upaw", doneEvents[0][types.AttributeKeyAmountOut])
	s.Require().True(s.info(id).Terminal)
}

func (s *KeeperTestSuite) TestSecondCoinTimeoutIsRetried() {
	id := s.startBuyBack()
	s.relayAcks(2)
	s.relay(simulation.OutcomeTimeout)

	info := s.info(id)
	s.Require().Equal(workflow.StageTransferOut.String(), info.Stage)
	s.Require().True(info.AwaitingRetry)
	st := s.state(id).(workflow.TransferOut)
	s.Require().Equal(types.CoinCursor{Current: 1, Last: 1}, st.Cursor)

	s.Require().Equal(sdkmath.NewInt(2000), s.chain.Venue.Balances(s.ctx(), s.keeper().ModuleAddress()).AmountOf("uosmo"))
	alarms := s.keeper().PendingAlarms(s.ctx(), 0)
	s.Require().Len(alarms, 1)
	s.Require().True(s.ctx().BlockTime().Add(types.DefaultParams().RetryDelay).Equal(alarms[0].FireAt))
	s.Require().Empty(s.chain.Venue.Pending(s.ctx()))

	s.Require().NoError(s.chain.NextBlock(types.DefaultParams().RetryDelay))
	s.Require().Empty(s.keeper().PendingAlarms(s.ctx(), 0))
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(sdk.NewInt64Coin("uosmo", 2000), pending[0].Token)
	s.Require().False(s.info(id).AwaitingRetry)

	s.relayAcks(3)
	s.requireStage(id, workflow.StageDone)
	s.Require().Equal(sdkmath.NewInt(5467), s.chain.Venue.Balances(s.ctx(), treasury).AmountOf("upaw"))
}

func (s *KeeperTestSuite) TestTransferErrorIsRetriedLikeTimeout() {
	id := s.startBuyBack()
	s.relayAcks(1)
	s.relay(simulation.OutcomeError)

	s.Require().True(s.info(id).AwaitingRetry)
	s.Require().Len(s.eventAttrs(types.EventTypeRetryScheduled), 1)

	s.Require().NoError(s.chain.NextBlock(time.Minute))
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(sdk.NewInt64Coin("uatom", 1000), pending[0].Token)

	s.relayAcks(4)
	s.requireStage(id, workflow.StageDone)
}

func (s *KeeperTestSuite) TestSwapTimeoutReopensAccount() {
	id := s.startBuyBack()
	s.relayAcks(3)
	s.requireStage(id, workflow.StageSwapping)

	swap := s.relay(simulation.OutcomeTimeout)
	s.Require().Equal(simulation.PacketICA, swap.Kind)
	ch, found := s.chain.Venue.Channel(s.ctx(), swap.PortID)
	s.Require().True(found)
	s.Require().Equal(simulation.ChannelClosed, ch.State)
	s.Require().True(s.info(id).AwaitingRetry)

	s.Require().NoError(s.chain.NextBlock(types.DefaultParams().RetryDelay))
	s.requireStage(id, workflow.StageReopeningAccount)
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(simulation.PacketHandshake, pending[0].Kind)
	s.Require().Equal(swap.PortID, pending[0].PortID)
	s.Require().NotEqual(swap.ChannelID, pending[0].ChannelID)

	s.relay(simulation.OutcomeAck)
	s.requireStage(id, workflow.StageSwapping)

	s.relayAcks(2)
	s.requireStage(id, workflow.StageDone)
	s.Require().Equal(sdkmath.NewInt(5467), s.chain.Venue.Balances(s.ctx(), treasury).AmountOf("upaw"))
}

func (s *KeeperTestSuite) TestReopenedAccountMustKeepItsAddress() {
	id := s.startClose()
	s.relayAcks(2)
	s.relay(simulation.OutcomeTimeout)
	s.Require().NoError(s.chain.NextBlock(types.DefaultParams().RetryDelay))
	s.requireStage(id, workflow.StageReopeningAccount)

	handshake := s.chain.Venue.Pending(s.ctx())[0]
	md := icatypes.NewMetadata(icatypes.Version, testConn.ConnectionID, "connection-0", "venue1impostor", icatypes.EncodingProtobuf, icatypes.TxTypeSDKMultiMsg)
	version := string(icatypes.ModuleCdc.MustMarshalJSON(&md))
	s.Require().NoError(s.keeper().OnChanOpenAck(s.ctx(), handshake.PortID, handshake.ChannelID, version))

	failed, ok := s.state(id).(workflow.Failed)
	s.Require().True(ok)
	s.Require().Equal(workflow.StageReopeningAccount, failed.At)
	s.Require().Contains(failed.Reason, types.ErrRemoteAccountChanged.Error())

	closeFailed := s.eventAttrs(tasks.EventTypePositionCloseFailed)
	s.Require().Len(closeFailed, 1)
	s.Require().Equal("reopening_account", closeFailed[0][tasks.AttributeKeyStage])
}

func (s *KeeperTestSuite) TestRegistrationErrorIsFatal() {
	id := s.startBuyBack()
	s.relay(simulation.OutcomeError)

	failed, ok := s.state(id).(workflow.Failed)
	s.Require().True(ok)
	s.Require().Equal(workflow.StageOpeningAccount, failed.At)
	s.Require().Contains(failed.Reason, types.ErrRegistrationFailed.Error())
	s.Require().Empty(s.keeper().PendingAlarms(s.ctx(), 0))

	escrow := s.chain.Venue.Balances(s.ctx(), s.keeper().ModuleAddress())
	s.Require().Equal(sdkmath.NewInt(1000), escrow.AmountOf("uatom"))
	s.Require().Len(s.eventAttrs(types.EventTypeWorkflowFailed), 1)
}

func (s *KeeperTestSuite) TestRegistrationDeadlineIsATimeout() {
	id := s.startBuyBack()
	s.relay(simulation.OutcomeTimeout)
	s.requireStage(id, workflow.StageOpeningAccount)
	s.Require().False(s.info(id).AwaitingRetry)

	s.Require().NoError(s.chain.NextBlock(types.DefaultParams().ICATimeout))
	s.Require().True(s.info(id).AwaitingRetry)
	s.Require().Empty(s.chain.Venue.Pending(s.ctx()))

	s.Require().NoError(s.chain.NextBlock(types.DefaultParams().RetryDelay))
	s.Require().False(s.info(id).AwaitingRetry)
	pending := s.chain.Venue.Pending(s.ctx())
	s.Require().Len(pending, 1)
	s.Require().Equal(simulation.PacketHandshake, pending[0].Kind)

	s.relayAcks(5)
	s.requireStage(id, workflow.StageDone)
}

func (s *KeeperTestSuite) TestFailedDeliveryIsParkedAndRedelivered() {
	id := s.startClose()
	s.relay(simulation.OutcomeAck)

	s.chain.Venue.RemovePrice(s.ctx(), "uatom")
	s.relay(simulation.OutcomeAck)

	parked, ok := s.state(id).(workflow.Delivering)
	s.Require().True(ok)
	s.Require().Equal(workflow.NotifyResponse, parked.Pending.Kind)
	s.Require().Equal(workflow.StageTransferOut, parked.Inner.Stage())
	s.Require().Len(s.eventAttrs(types.EventTypeDeliveryDeferred), 1)
	s.Require().Empty(s.chain.Venue.Pending(s.ctx()))

	alarms := s.keeper().PendingAlarms(s.ctx(), 0)
	s.Require().Len(alarms, 1)
	s.Require().True(s.ctx().BlockTime().Add(types.DefaultParams().DeliveryDelay).Equal(alarms[0].FireAt))

	s.chain.Venue.SetPrice(s.ctx(), "uatom", sdkmath.LegacyNewDec(10))
	s.Require().NoError(s.chain.NextBlock(time.Second))
	s.requireStage(id, workflow.StageSwapping)

	s.relayAcks(2)
	s.requireStage(id, workflow.StageDone)
	s.Require().Equal(sdkmath.NewInt(9970), s.chain.Venue.Balances(s.ctx(), lender).AmountOf("uusdc"))
	s.Require().Len(s.eventAttrs(tasks.EventTypePositionClosed), 1)
}

func (s *KeeperTestSuite) TestSecondDeliveryFailureIsFatal() {
	id := s.startClose()
	s.relay(simulation.OutcomeAck)
	s.chain.Venue.RemovePrice(s.ctx(), "uatom")
	s.relay(simulation.OutcomeAck)
	s.requireStage(id, workflow.StageDelivering)

	s.Require().NoError(s.chain.NextBlock(time.Second))

	failed, ok := s.state(id).(workflow.Failed)
	s.Require().True(ok)
	s.Require().Equal(workflow.StageTransferOut, failed.At)
	s.Require().Contains(failed.Reason, types.ErrDeliveryFailed.Error())

	closeFailed := s.eventAttrs(tasks.EventTypePositionCloseFailed)
	s.Require().Len(closeFailed, 1)
	s.Require().Equal("transfer_out", closeFailed[0][tasks.AttributeKeyStage])
}

func (s *KeeperTestSuite) TestMalformedSwapResponseFails() {
	id := s.startClose()
	s.relayAcks(2)
	s.requireStage(id, workflow.StageSwapping)

	swap := s.chain.Venue.Pending(s.ctx())[0]
	packet := channeltypes.Packet{Sequence: swap.Sequence, SourcePort: swap.PortID, SourceChannel: swap.ChannelID}
	err := s.keeper().OnAcknowledgementPacket(s.ctx(), packet, channeltypes.NewResultAcknowledgement([]byte("garbage")))
	s.Require().NoError(err)

	failed, ok := s.state(id).(workflow.Failed)
	s.Require().True(ok)
	s.Require().Equal(workflow.StageSwapping, failed.At)
	s.Require().Contains(failed.Reason, types.ErrMalformedResponse.Error())
	s.Require().Len(s.eventAttrs(tasks.EventTypePositionCloseFailed), 1)

	// The real acknowledgement no longer has a recipient.
	s.relay(simulation.OutcomeAck)
	s.requireStage(id, workflow.StageFailed)
}

func (s *KeeperTestSuite) TestStaleAlarmDoesNotDuplicateInFlightTransfer() {
	id := s.startBuyBack()
	s.relayAcks(1)
	s.Require().Len(s.chain.Venue.Pending(s.ctx()), 1)

	s.keeper().ScheduleAlarm(s.ctx(), id, s.ctx().BlockTime())
	s.Require().NoError(s.chain.NextBlock(time.Second))

	s.requireStage(id, workflow.StageTransferOut)
	s.Require().False(s.info(id).AwaitingRetry)
	s.Require().Len(s.chain.Venue.Pending(s.ctx()), 1)
	s.Require().Empty(s.keeper().PendingAlarms(s.ctx(), 0))
}

func (s *KeeperTestSuite) TestCallbacksForForeignPacketsAreIgnored() {
	packet := channeltypes.Packet{Sequence: 9, SourcePort: "transfer", SourceChannel: "channel-99"}
	s.Require().NoError(s.keeper().OnAcknowledgementPacket(s.ctx(), packet, channeltypes.NewResultAcknowledgement([]byte{1})))
	s.Require().NoError(s.keeper().OnTimeoutPacket(s.ctx(), packet))
	s.Require().NoError(s.keeper().OnChanOpenAck(s.ctx(), "icacontroller-someone", "channel-3", "{}"))
	s.Require().NoError(s.keeper().OnChanCloseConfirm(s.ctx(), "icacontroller-someone", "channel-3"))
}

func (s *KeeperTestSuite) TestDuplicateResponseIsIgnored() {
	id := s.startBuyBack()
	handshake := s.chain.Venue.Pending(s.ctx())[0]
	s.relay(simulation.OutcomeAck)
	before := s.info(id)

	// A replayed channel ack no longer maps to the workflow.
	s.Require().NoError(s.keeper().OnChanOpenAck(s.ctx(), handshake.PortID, handshake.ChannelID, "{}"))
	s.Require().Equal(before, s.info(id))
}
