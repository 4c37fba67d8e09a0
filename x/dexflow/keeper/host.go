package keeper

import (
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	icacontrollertypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/controller/types"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	feetypes "github.com/cosmos/ibc-go/v8/modules/apps/29-fee/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

var _ workflow.Host = ibcHost{}

// ibcHost builds ICS-20, ICS-27 and ICS-29 messages for a workflow step.
type ibcHost struct {
	ctx    sdk.Context
	k      Keeper
	params types.Params
}

func (h ibcHost) TransferOut(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error) {
	sender := h.k.ModuleAddress().String()
	transfer := &transfertypes.MsgTransfer{
		SourcePort:       h.params.TransferPort,
		SourceChannel:    acc.Connection.TransferChannel,
		Token:            coin,
		Sender:           sender,
		Receiver:         acc.Address,
		TimeoutHeight:    clienttypes.ZeroHeight(),
		TimeoutTimestamp: uint64(h.ctx.BlockTime().Add(h.params.TransferTimeout).UnixNano()),
	}
	if !h.params.PaysRelayerFees() {
		return []sdk.Msg{transfer}, nil
	}
	fee := &feetypes.MsgPayPacketFee{
		Fee:             feetypes.NewFee(sdk.NewCoins(), h.params.AckTip, h.params.TimeoutTip),
		SourcePortId:    h.params.TransferPort,
		SourceChannelId: acc.Connection.TransferChannel,
		Signer:          sender,
	}
	return []sdk.Msg{fee, transfer}, nil
}

// TransferIn is executed by the remote account, so its transfer must also
// outlive the interchain transaction carrying it.
func (h ibcHost) TransferIn(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error) {
	transfer := &transfertypes.MsgTransfer{
		SourcePort:       transfertypes.PortID,
		SourceChannel:    acc.Connection.RemoteTransferChannel,
		Token:            coin,
		Sender:           acc.Address,
		Receiver:         h.k.ModuleAddress().String(),
		TimeoutHeight:    clienttypes.ZeroHeight(),
		TimeoutTimestamp: uint64(h.ctx.BlockTime().Add(h.params.ICATimeout + h.params.TransferTimeout).UnixNano()),
	}
	msgAny, err := codectypes.NewAnyWithValue(transfer)
	if err != nil {
		return nil, err
	}
	msg, err := h.sendTx(acc, []*codectypes.Any{msgAny})
	if err != nil {
		return nil, err
	}
	return []sdk.Msg{msg}, nil
}

func (h ibcHost) RegisterAccount(owner string, conn types.Connection) (sdk.Msg, error) {
	return &icacontrollertypes.MsgRegisterInterchainAccount{
		Owner:        owner,
		ConnectionId: conn.ConnectionID,
		Ordering:     channeltypes.ORDERED,
	}, nil
}

func (h ibcHost) SubmitSwap(acc types.RemoteAccount, swaps []types.SwapRequest) (sdk.Msg, error) {
	msgs := make([]*codectypes.Any, 0, len(swaps))
	for i, swap := range swaps {
		if err := swap.Validate(); err != nil {
			return nil, errorsmod.Wrapf(err, "swap %d", i)
		}
		bz, err := json.Marshal(swap)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, &codectypes.Any{TypeUrl: types.SwapMsgTypeURL, Value: bz})
	}
	return h.sendTx(acc, msgs)
}

func (h ibcHost) sendTx(acc types.RemoteAccount, msgs []*codectypes.Any) (*icacontrollertypes.MsgSendTx, error) {
	tx := icatypes.CosmosTx{Messages: msgs}
	data, err := tx.Marshal()
	if err != nil {
		return nil, errorsmod.Wrap(err, "encode interchain tx")
	}
	return &icacontrollertypes.MsgSendTx{
		Owner:        acc.Owner,
		ConnectionId: acc.Connection.ConnectionID,
		PacketData: icatypes.InterchainAccountPacketData{
			Type: icatypes.EXECUTE_TX,
			Data: data,
		},
		RelativeTimeout: uint64(h.params.ICATimeout.Nanoseconds()),
	}, nil
}

func (h ibcHost) DecodeSwapResponse(data []byte) ([]sdkmath.Int, error) {
	return DecodeSwapAcknowledgement(data)
}

func (h ibcHost) AccountReachable(acc types.RemoteAccount) bool {
	portID, err := icatypes.NewControllerPortID(acc.Owner)
	if err != nil {
		return false
	}
	_, found := h.k.icaKeeper.GetActiveChannelID(h.ctx, acc.Connection.ConnectionID, portID)
	return found
}

// DecodeSwapAcknowledgement extracts the per-swap output amounts from the
// result of an interchain swap transaction, in message order.
func DecodeSwapAcknowledgement(data []byte) ([]sdkmath.Int, error) {
	var msgData sdk.TxMsgData
	if err := msgData.Unmarshal(data); err != nil {
		return nil, errorsmod.Wrapf(types.ErrMalformedResponse, "tx msg data: %s", err)
	}
	amounts := make([]sdkmath.Int, 0, len(msgData.MsgResponses))
	for i, resp := range msgData.MsgResponses {
		if resp.TypeUrl != types.SwapResponseTypeURL {
			return nil, errorsmod.Wrapf(types.ErrMalformedResponse, "response %d has type %s", i, resp.TypeUrl)
		}
		var out types.SwapResponse
		if err := json.Unmarshal(resp.Value, &out); err != nil {
			return nil, errorsmod.Wrapf(types.ErrMalformedResponse, "response %d: %s", i, err)
		}
		if out.TokenOutAmount.IsNil() {
			return nil, errorsmod.Wrapf(types.ErrMalformedResponse, "response %d without amount", i)
		}
		amounts = append(amounts, out.TokenOutAmount)
	}
	return amounts, nil
}

var _ workflow.Oracle = oracleRouter{}

// oracleRouter resolves swap routes through the oracle keeper.
type oracleRouter struct {
	ctx    sdk.Context
	oracle types.OracleKeeper
}

func (o oracleRouter) SwapPath(ref types.OracleRef, from, to string) ([]types.SwapHop, error) {
	if o.oracle == nil {
		return nil, fmt.Errorf("no oracle configured for %s", ref.Address)
	}
	return o.oracle.SwapPath(o.ctx, ref.BaseDenom, from, to)
}
