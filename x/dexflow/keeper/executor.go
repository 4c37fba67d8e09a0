package keeper

import (
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	icacontrollertypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/controller/types"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	feetypes "github.com/cosmos/ibc-go/v8/modules/apps/29-fee/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// execute dispatches a batch in order and indexes every packet it sends
// under workflow id. A failing message fails the whole batch.
func (k Keeper) execute(ctx sdk.Context, id uint64, batch types.Batch) error {
	for i, msg := range batch.Msgs {
		if err := k.dispatch(ctx, id, msg); err != nil {
			return errorsmod.Wrapf(err, "msg %d (%s)", i, sdk.MsgTypeURL(msg))
		}
		k.metrics.OutboundMsgs.WithLabelValues(sdk.MsgTypeURL(msg)).Inc()
	}
	for _, alarm := range batch.Alarms {
		k.ScheduleAlarm(ctx, id, alarm.FireAt)
	}
	ctx.EventManager().EmitEvents(batch.Events)
	return nil
}

func (k Keeper) dispatch(ctx sdk.Context, id uint64, msg sdk.Msg) error {
	switch m := msg.(type) {
	case *feetypes.MsgPayPacketFee:
		_, err := k.feeKeeper.PayPacketFee(ctx, m)
		return err

	case *transfertypes.MsgTransfer:
		resp, err := k.transferKeeper.Transfer(ctx, m)
		if err != nil {
			return err
		}
		k.setPendingPacket(ctx, m.SourcePort, m.SourceChannel, resp.Sequence, id)
		return nil

	case *icacontrollertypes.MsgRegisterInterchainAccount:
		resp, err := k.icaKeeper.RegisterInterchainAccount(ctx, m)
		if err != nil {
			return err
		}
		deadline := ctx.BlockTime().Add(k.GetParams(ctx).ICATimeout)
		k.setPendingRegistration(ctx, resp.PortId, id, deadline, false)
		return nil

	case *icacontrollertypes.MsgSendTx:
		resp, err := k.icaKeeper.SendTx(ctx, m)
		if err != nil {
			return err
		}
		portID, err := icatypes.NewControllerPortID(m.Owner)
		if err != nil {
			return err
		}
		channelID, found := k.icaKeeper.GetActiveChannelID(ctx, m.ConnectionId, portID)
		if !found {
			return errorsmod.Wrapf(icatypes.ErrActiveChannelNotFound, "port %s on %s", portID, m.ConnectionId)
		}
		k.setPendingPacket(ctx, portID, channelID, resp.Sequence, id)
		return nil

	case *banktypes.MsgSend:
		from, err := sdk.AccAddressFromBech32(m.FromAddress)
		if err != nil {
			return err
		}
		to, err := sdk.AccAddressFromBech32(m.ToAddress)
		if err != nil {
			return err
		}
		if !from.Equals(k.ModuleAddress()) {
			return errorsmod.Wrapf(types.ErrUnsupportedMsg, "bank send from %s", m.FromAddress)
		}
		return k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, to, m.Amount)

	default:
		return errorsmod.Wrapf(types.ErrUnsupportedMsg, "%T", msg)
	}
}
