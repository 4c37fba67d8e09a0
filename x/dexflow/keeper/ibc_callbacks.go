package keeper

import (
	"encoding/json"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	dexflowtelemetry "github.com/paw-chain/dexflow/pkg/telemetry"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// OnChanOpenAck completes the account registration waiting on portID.
// Channels not opened by a workflow are ignored.
func (k Keeper) OnChanOpenAck(ctx sdk.Context, portID, channelID, counterpartyVersion string) error {
	id, found := k.takePendingRegistration(ctx, portID)
	if !found {
		return nil
	}
	k.metrics.IBCCallbacks.WithLabelValues("chan_open_ack", portID).Inc()

	payload, address := registrationPayload(counterpartyVersion)
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeAccountRegistered,
			sdk.NewAttribute(types.AttributeKeyWorkflowID, strconv.FormatUint(id, 10)),
			sdk.NewAttribute(types.AttributeKeyOwner, portID),
			sdk.NewAttribute(types.AttributeKeyRemote, address),
		),
	)
	return k.route(ctx, id, workflow.Notification{Kind: workflow.NotifyResponse, Payload: payload})
}

// OnChanCloseConfirm reports a registration whose channel closed before opening.
func (k Keeper) OnChanCloseConfirm(ctx sdk.Context, portID, channelID string) error {
	id, found := k.takePendingRegistration(ctx, portID)
	if !found {
		return nil
	}
	k.metrics.IBCCallbacks.WithLabelValues("chan_close_confirm", portID).Inc()
	return k.route(ctx, id, workflow.Notification{Kind: workflow.NotifyError, Payload: []byte("channel " + channelID + " closed during handshake")})
}

// OnAcknowledgementPacket routes an acknowledgement to the workflow that sent the packet.
func (k Keeper) OnAcknowledgementPacket(ctx sdk.Context, packet channeltypes.Packet, ack channeltypes.Acknowledgement) (err error) {
	id, found := k.takePendingPacket(ctx, packet.SourcePort, packet.SourceChannel, packet.Sequence)
	if !found {
		return nil
	}
	_, span := dexflowtelemetry.StartPacketSpan(ctx, "acknowledgement", packet.SourcePort, packet.SourceChannel, packet.Sequence)
	defer func() { dexflowtelemetry.EndSpan(span, err) }()
	k.metrics.IBCCallbacks.WithLabelValues("acknowledgement", packet.SourcePort).Inc()

	n := workflow.Notification{Kind: workflow.NotifyResponse, Payload: ack.GetResult()}
	if !ack.Success() {
		n = workflow.Notification{Kind: workflow.NotifyError, Payload: []byte(ack.GetError())}
	}
	return k.route(ctx, id, n)
}

// OnTimeoutPacket routes a timeout to the workflow that sent the packet.
func (k Keeper) OnTimeoutPacket(ctx sdk.Context, packet channeltypes.Packet) (err error) {
	id, found := k.takePendingPacket(ctx, packet.SourcePort, packet.SourceChannel, packet.Sequence)
	if !found {
		return nil
	}
	_, span := dexflowtelemetry.StartPacketSpan(ctx, "timeout", packet.SourcePort, packet.SourceChannel, packet.Sequence)
	defer func() { dexflowtelemetry.EndSpan(span, err) }()
	k.metrics.IBCCallbacks.WithLabelValues("timeout", packet.SourcePort).Inc()

	ctx.Logger().Error("workflow packet timed out",
		"workflow_id", id,
		"packet_sequence", packet.Sequence,
		"channel", packet.SourceChannel,
	)
	return k.route(ctx, id, workflow.Notification{Kind: workflow.NotifyTimeout})
}

// route delivers n and keeps events the workflow rejects from failing the
// IBC callback, which would leave the packet unacknowledged forever.
func (k Keeper) route(ctx sdk.Context, id uint64, n workflow.Notification) error {
	err := k.deliver(ctx, id, n)
	if err != nil && workflow.IsUnexpected(err) {
		return nil
	}
	return err
}

// registrationPayload converts ICA channel metadata into a registration
// response. Metadata without an address is passed through unchanged and
// rejected by the workflow as malformed.
func registrationPayload(counterpartyVersion string) ([]byte, string) {
	var md icatypes.Metadata
	if err := icatypes.ModuleCdc.UnmarshalJSON([]byte(counterpartyVersion), &md); err != nil || md.Address == "" {
		return []byte(counterpartyVersion), ""
	}
	bz, err := json.Marshal(types.RegistrationResponse{RemoteAccountID: md.Address})
	if err != nil {
		return []byte(counterpartyVersion), ""
	}
	return bz, md.Address
}
