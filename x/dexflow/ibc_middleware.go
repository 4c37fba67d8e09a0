package dexflow

import (
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	capabilitytypes "github.com/cosmos/ibc-go/modules/capability/types"
	feetypes "github.com/cosmos/ibc-go/v8/modules/apps/29-fee/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	porttypes "github.com/cosmos/ibc-go/v8/modules/core/05-port/types"
	ibcexported "github.com/cosmos/ibc-go/v8/modules/core/exported"
)

var _ porttypes.IBCModule = IBCMiddleware{}

// PacketCallbacks receives the outcome of packets and handshakes started by
// workflows.
type PacketCallbacks interface {
	OnChanOpenAck(ctx sdk.Context, portID, channelID, counterpartyVersion string) error
	OnChanCloseConfirm(ctx sdk.Context, portID, channelID string) error
	OnAcknowledgementPacket(ctx sdk.Context, packet channeltypes.Packet, ack channeltypes.Acknowledgement) error
	OnTimeoutPacket(ctx sdk.Context, packet channeltypes.Packet) error
}

// IBCMiddleware wraps the transfer and interchain account controller stacks
// and reports packet outcomes to dexflow after the wrapped application has
// processed them. Packets dexflow did not send pass through untouched.
//
// The stack is expected to place the ICS-29 fee middleware outside this one so
// acknowledgements arrive unwrapped. Incentivized acknowledgements that still
// reach it are unwrapped to the application acknowledgement they carry.
type IBCMiddleware struct {
	app       porttypes.IBCModule
	callbacks PacketCallbacks
}

// NewIBCMiddleware creates a middleware reporting to callbacks.
func NewIBCMiddleware(app porttypes.IBCModule, callbacks PacketCallbacks) IBCMiddleware {
	return IBCMiddleware{app: app, callbacks: callbacks}
}

// OnChanOpenInit implements the IBCModule interface
func (im IBCMiddleware) OnChanOpenInit(
	ctx sdk.Context,
	order channeltypes.Order,
	connectionHops []string,
	portID string,
	channelID string,
	chanCap *capabilitytypes.Capability,
	counterparty channeltypes.Counterparty,
	version string,
) (string, error) {
	return im.app.OnChanOpenInit(ctx, order, connectionHops, portID, channelID, chanCap, counterparty, version)
}

// OnChanOpenTry implements the IBCModule interface
func (im IBCMiddleware) OnChanOpenTry(
	ctx sdk.Context,
	order channeltypes.Order,
	connectionHops []string,
	portID,
	channelID string,
	chanCap *capabilitytypes.Capability,
	counterparty channeltypes.Counterparty,
	counterpartyVersion string,
) (string, error) {
	return im.app.OnChanOpenTry(ctx, order, connectionHops, portID, channelID, chanCap, counterparty, counterpartyVersion)
}

// OnChanOpenAck completes a pending account registration once the wrapped
// controller accepted the channel.
func (im IBCMiddleware) OnChanOpenAck(
	ctx sdk.Context,
	portID,
	channelID string,
	counterpartyChannelID string,
	counterpartyVersion string,
) error {
	if err := im.app.OnChanOpenAck(ctx, portID, channelID, counterpartyChannelID, counterpartyVersion); err != nil {
		return err
	}
	return im.callbacks.OnChanOpenAck(ctx, portID, channelID, counterpartyVersion)
}

// OnChanOpenConfirm implements the IBCModule interface
func (im IBCMiddleware) OnChanOpenConfirm(ctx sdk.Context, portID, channelID string) error {
	return im.app.OnChanOpenConfirm(ctx, portID, channelID)
}

// OnChanCloseInit implements the IBCModule interface
func (im IBCMiddleware) OnChanCloseInit(ctx sdk.Context, portID, channelID string) error {
	return im.app.OnChanCloseInit(ctx, portID, channelID)
}

// OnChanCloseConfirm reports a registration channel that closed before it opened.
func (im IBCMiddleware) OnChanCloseConfirm(ctx sdk.Context, portID, channelID string) error {
	if err := im.app.OnChanCloseConfirm(ctx, portID, channelID); err != nil {
		return err
	}
	return im.callbacks.OnChanCloseConfirm(ctx, portID, channelID)
}

// OnRecvPacket implements the IBCModule interface
func (im IBCMiddleware) OnRecvPacket(ctx sdk.Context, packet channeltypes.Packet, relayer sdk.AccAddress) ibcexported.Acknowledgement {
	return im.app.OnRecvPacket(ctx, packet, relayer)
}

// OnAcknowledgementPacket decodes the acknowledgement and reports it after
// the wrapped application handled it.
func (im IBCMiddleware) OnAcknowledgementPacket(
	ctx sdk.Context,
	packet channeltypes.Packet,
	acknowledgement []byte,
	relayer sdk.AccAddress,
) error {
	if err := im.app.OnAcknowledgementPacket(ctx, packet, acknowledgement, relayer); err != nil {
		return err
	}

	ack, err := decodeAcknowledgement(acknowledgement)
	if err != nil {
		return err
	}
	return im.callbacks.OnAcknowledgementPacket(ctx, packet, ack)
}

func decodeAcknowledgement(bz []byte) (channeltypes.Acknowledgement, error) {
	var ack channeltypes.Acknowledgement
	err := channeltypes.SubModuleCdc.UnmarshalJSON(bz, &ack)
	if err == nil {
		return ack, nil
	}

	var incentivized feetypes.IncentivizedAcknowledgement
	if feetypes.ModuleCdc.UnmarshalJSON(bz, &incentivized) == nil && len(incentivized.AppAcknowledgement) > 0 {
		if innerErr := channeltypes.SubModuleCdc.UnmarshalJSON(incentivized.AppAcknowledgement, &ack); innerErr == nil {
			return ack, nil
		}
	}
	return ack, errorsmod.Wrapf(sdkerrors.ErrUnknownRequest, "cannot unmarshal packet acknowledgement: %v", err)
}

// OnTimeoutPacket reports a timeout after the wrapped application refunded it.
func (im IBCMiddleware) OnTimeoutPacket(ctx sdk.Context, packet channeltypes.Packet, relayer sdk.AccAddress) error {
	if err := im.app.OnTimeoutPacket(ctx, packet, relayer); err != nil {
		return err
	}
	return im.callbacks.OnTimeoutPacket(ctx, packet)
}
