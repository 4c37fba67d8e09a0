package simulation

import (
	"encoding/json"
	"fmt"
	"math/rand"

	errorsmod "cosmossdk.io/errors"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/gogoproto/proto"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"golang.org/x/time/rate"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// PacketHandler receives the IBC callbacks of the controller chain.
type PacketHandler interface {
	OnChanOpenAck(ctx sdk.Context, portID, channelID, counterpartyVersion string) error
	OnChanCloseConfirm(ctx sdk.Context, portID, channelID string) error
	OnAcknowledgementPacket(ctx sdk.Context, packet channeltypes.Packet, ack channeltypes.Acknowledgement) error
	OnTimeoutPacket(ctx sdk.Context, packet channeltypes.Packet) error
}

// Outcome is how the relayer completed one outbound item.
type Outcome string

const (
	OutcomeAck     Outcome = "ack"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// Faults sets how often the relayer breaks an outbound item. Rates are
// probabilities in [0,1] and their sum must not exceed 1.
type Faults struct {
	TimeoutRate float64
	ErrorRate   float64
}

// Validate checks the rates.
func (f Faults) Validate() error {
	if f.TimeoutRate < 0 || f.ErrorRate < 0 || f.TimeoutRate+f.ErrorRate > 1 {
		return fmt.Errorf("invalid fault rates: timeout %.2f, error %.2f", f.TimeoutRate, f.ErrorRate)
	}
	return nil
}

// Relayed describes one completed outbound item.
type Relayed struct {
	Packet  Outbound
	Outcome Outcome
	Err     error
}

// Relayer completes the venue's outbound items against a PacketHandler.
type Relayer struct {
	venue   *Venue
	handler PacketHandler
	faults  Faults
	rng     *rand.Rand
	address sdk.AccAddress
	limiter *rate.Limiter

	// callbackErr is the handler error of the item being relayed.
	callbackErr error
}

// NewRelayer creates a relayer whose fault draws are reproducible for seed.
func NewRelayer(venue *Venue, handler PacketHandler, faults Faults, seed int64, address sdk.AccAddress) (*Relayer, error) {
	if err := faults.Validate(); err != nil {
		return nil, err
	}
	return &Relayer{
		venue:   venue,
		handler: handler,
		faults:  faults,
		rng:     rand.New(rand.NewSource(seed)),
		address: address,
	}, nil
}

// SetThroughput caps the relayer at perSecond items of block time with the
// given burst. Items over the cap wait in the outbox for a later block.
func (r *Relayer) SetThroughput(perSecond float64, burst int) {
	r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (r *Relayer) draw() Outcome {
	x := r.rng.Float64()
	switch {
	case x < r.faults.TimeoutRate:
		return OutcomeTimeout
	case x < r.faults.TimeoutRate+r.faults.ErrorRate:
		return OutcomeError
	default:
		return OutcomeAck
	}
}

// RelayAll completes every queued item, including items queued by the
// callbacks it triggers, until the outbox is empty, limit items were relayed
// or the throughput cap is reached.
func (r *Relayer) RelayAll(ctx sdk.Context, limit int) ([]Relayed, error) {
	var done []Relayed
	for len(done) < limit {
		pending := r.venue.Pending(ctx)
		if len(pending) == 0 {
			return done, nil
		}
		if r.limiter != nil && !r.limiter.AllowN(ctx.BlockTime(), 1) {
			return done, nil
		}
		relayed, err := r.Relay(ctx, pending[0], r.draw())
		if err != nil {
			return done, err
		}
		done = append(done, relayed)
	}
	return done, nil
}

// Relay completes o with the given outcome. Handler errors are reported in
// the result; only venue failures are returned.
func (r *Relayer) Relay(ctx sdk.Context, o Outbound, outcome Outcome) (Relayed, error) {
	r.venue.dequeue(ctx, o)
	r.callbackErr = nil

	var err error
	switch o.Kind {
	case PacketHandshake:
		err = r.relayHandshake(ctx, o, outcome)
	case PacketTransfer:
		err = r.relayTransfer(ctx, o, outcome)
	case PacketICA:
		err = r.relayICA(ctx, o, outcome)
	default:
		return Relayed{}, fmt.Errorf("unknown outbound kind %q", o.Kind)
	}
	if err != nil {
		return Relayed{}, err
	}
	return Relayed{Packet: o, Outcome: outcome, Err: r.callbackErr}, nil
}

func (r *Relayer) relayHandshake(ctx sdk.Context, o Outbound, outcome Outcome) error {
	ch, found := r.venue.channel(ctx, o.PortID)
	if !found || ch.ChannelID != o.ChannelID {
		return nil
	}
	switch outcome {
	case OutcomeTimeout:
		// The handshake never completes. The channel is abandoned silently.
		r.venue.setChannelState(ctx, o.PortID, ChannelClosed)
		return nil
	case OutcomeError:
		r.venue.setChannelState(ctx, o.PortID, ChannelClosed)
		return r.callback(ctx, func(c sdk.Context) error {
			return r.handler.OnChanCloseConfirm(c, o.PortID, o.ChannelID)
		})
	}

	r.venue.setChannelState(ctx, o.PortID, ChannelOpen)
	md := icatypes.NewMetadata(
		icatypes.Version,
		ch.ConnectionID,
		r.venue.config.HostConnectionID,
		ch.Address,
		icatypes.EncodingProtobuf,
		icatypes.TxTypeSDKMultiMsg,
	)
	version := string(icatypes.ModuleCdc.MustMarshalJSON(&md))
	return r.callback(ctx, func(c sdk.Context) error {
		return r.handler.OnChanOpenAck(c, o.PortID, o.ChannelID, version)
	})
}

func (r *Relayer) relayTransfer(ctx sdk.Context, o Outbound, outcome Outcome) error {
	data := transfertypes.NewFungibleTokenPacketData(o.Token.Denom, o.Token.Amount.String(), o.Sender, o.Receiver, "")
	packet := r.packet(o, data.GetBytes())

	if outcome == OutcomeAck {
		r.venue.setRemote(ctx, o.Receiver, r.venue.RemoteBalances(ctx, o.Receiver).Add(o.Token))
		if err := r.venue.settleFee(ctx, o, r.address, false); err != nil {
			return err
		}
		return r.callback(ctx, func(c sdk.Context) error {
			return r.handler.OnAcknowledgementPacket(c, packet, channeltypes.NewResultAcknowledgement([]byte{byte(1)}))
		})
	}

	// Refund the sender.
	r.venue.setLocal(ctx, o.Sender, r.venue.local(ctx, o.Sender).Add(o.Token))
	if err := r.venue.settleFee(ctx, o, r.address, outcome == OutcomeTimeout); err != nil {
		return err
	}
	if outcome == OutcomeTimeout {
		return r.callback(ctx, func(c sdk.Context) error {
			return r.handler.OnTimeoutPacket(c, packet)
		})
	}
	return r.callback(ctx, func(c sdk.Context) error {
		return r.handler.OnAcknowledgementPacket(c, packet, channeltypes.NewErrorAcknowledgement(errorsmod.Wrap(transfertypes.ErrReceiveDisabled, "simulated receive failure")))
	})
}

func (r *Relayer) relayICA(ctx sdk.Context, o Outbound, outcome Outcome) error {
	packet := r.packet(o, o.Data)

	switch outcome {
	case OutcomeTimeout:
		// Ordered channels close on timeout.
		r.venue.setChannelState(ctx, o.PortID, ChannelClosed)
		return r.callback(ctx, func(c sdk.Context) error {
			return r.handler.OnTimeoutPacket(c, packet)
		})
	case OutcomeError:
		return r.callback(ctx, func(c sdk.Context) error {
			return r.handler.OnAcknowledgementPacket(c, packet, channeltypes.NewErrorAcknowledgement(errorsmod.Wrap(icatypes.ErrUnknownDataType, "simulated host failure")))
		})
	}

	ch, _ := r.venue.channel(ctx, o.PortID)
	ack := r.executeTx(ctx, ch.Address, o.Data)
	return r.callback(ctx, func(c sdk.Context) error {
		return r.handler.OnAcknowledgementPacket(c, packet, ack)
	})
}

// executeTx runs an interchain transaction atomically on the remote venue.
func (r *Relayer) executeTx(ctx sdk.Context, signer string, data []byte) channeltypes.Acknowledgement {
	cacheCtx, write := ctx.CacheContext()
	responses, err := r.venue.execute(cacheCtx, signer, data)
	if err != nil {
		return channeltypes.NewErrorAcknowledgement(err)
	}
	bz, err := (&sdk.TxMsgData{MsgResponses: responses}).Marshal()
	if err != nil {
		return channeltypes.NewErrorAcknowledgement(err)
	}
	write()
	return channeltypes.NewResultAcknowledgement(bz)
}

// callback runs a handler callback with the semantics of a core IBC
// handler: a failing callback reverts its own writes.
func (r *Relayer) callback(ctx sdk.Context, cb func(sdk.Context) error) error {
	cacheCtx, write := ctx.CacheContext()
	if err := cb(cacheCtx); err != nil {
		ctx.Logger().Error("packet callback failed", "error", err)
		r.callbackErr = err
		return nil
	}
	write()
	return nil
}

func (r *Relayer) packet(o Outbound, data []byte) channeltypes.Packet {
	return channeltypes.Packet{
		Sequence:           o.Sequence,
		SourcePort:         o.PortID,
		SourceChannel:      o.ChannelID,
		DestinationPort:    counterpartyPort(o),
		DestinationChannel: o.ChannelID,
		Data:               data,
	}
}

func counterpartyPort(o Outbound) string {
	if o.Kind == PacketICA {
		return icatypes.HostPortID
	}
	return transfertypes.PortID
}

// execute decodes and runs every message of an interchain transaction.
func (v *Venue) execute(ctx sdk.Context, signer string, data []byte) ([]*codectypes.Any, error) {
	var tx icatypes.CosmosTx
	if err := tx.Unmarshal(data); err != nil {
		return nil, errorsmod.Wrap(icatypes.ErrUnknownDataType, err.Error())
	}
	responses := make([]*codectypes.Any, 0, len(tx.Messages))
	for i, msg := range tx.Messages {
		resp, err := v.executeMsg(ctx, signer, msg)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "message %d", i)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (v *Venue) executeMsg(ctx sdk.Context, signer string, msg *codectypes.Any) (*codectypes.Any, error) {
	switch msg.TypeUrl {
	case types.SwapMsgTypeURL:
		var req types.SwapRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return nil, err
		}
		if req.Sender != signer {
			return nil, errorsmod.Wrapf(icatypes.ErrUnknownDataType, "swap signed by %s, account is %s", req.Sender, signer)
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		out, err := v.quote(ctx, req.TokenIn.Amount, req.TokenIn.Denom, req.Routes)
		if err != nil {
			return nil, err
		}
		if out.LT(req.MinAmountOut) {
			return nil, fmt.Errorf("swap output %s below minimum %s", out, req.MinAmountOut)
		}
		if err := v.debitRemote(ctx, signer, sdk.NewCoins(req.TokenIn)); err != nil {
			return nil, err
		}
		v.setRemote(ctx, signer, v.RemoteBalances(ctx, signer).Add(sdk.NewCoin(req.OutDenom(), out)))
		bz, err := json.Marshal(types.SwapResponse{TokenOutAmount: out})
		if err != nil {
			return nil, err
		}
		return &codectypes.Any{TypeUrl: types.SwapResponseTypeURL, Value: bz}, nil

	case sdk.MsgTypeURL(&transfertypes.MsgTransfer{}):
		var transfer transfertypes.MsgTransfer
		if err := proto.Unmarshal(msg.Value, &transfer); err != nil {
			return nil, err
		}
		if transfer.Sender != signer {
			return nil, errorsmod.Wrapf(icatypes.ErrUnknownDataType, "transfer signed by %s, account is %s", transfer.Sender, signer)
		}
		if err := v.debitRemote(ctx, signer, sdk.NewCoins(transfer.Token)); err != nil {
			return nil, err
		}
		// The return leg is credited as soon as it is sent.
		v.setLocal(ctx, transfer.Receiver, v.local(ctx, transfer.Receiver).Add(transfer.Token))
		return codectypes.NewAnyWithValue(&transfertypes.MsgTransferResponse{Sequence: v.nextCounter(ctx, "remote-transfer") + 1})

	default:
		return nil, errorsmod.Wrapf(icatypes.ErrUnknownDataType, "unsupported message %s", msg.TypeUrl)
	}
}

func (v *Venue) debitRemote(ctx sdk.Context, addr string, amt sdk.Coins) error {
	balance := v.RemoteBalances(ctx, addr)
	remaining, negative := balance.SafeSub(amt...)
	if negative {
		return fmt.Errorf("remote account %s has %s, needs %s", addr, balance, amt)
	}
	v.setRemote(ctx, addr, remaining)
	return nil
}
