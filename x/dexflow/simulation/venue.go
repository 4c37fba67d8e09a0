package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	icacontrollertypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/controller/types"
	icatypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/types"
	feetypes "github.com/cosmos/ibc-go/v8/modules/apps/29-fee/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/google/uuid"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

var (
	_ types.BankKeeper          = (*Venue)(nil)
	_ types.TransferKeeper      = (*Venue)(nil)
	_ types.ICAControllerKeeper = (*Venue)(nil)
	_ types.FeeKeeper           = (*Venue)(nil)
	_ types.OracleKeeper        = (*Venue)(nil)
)

// remoteAccountNamespace seeds the deterministic remote account addresses.
var remoteAccountNamespace = uuid.MustParse("6f0c1a52-8d1e-4f5b-9a0e-2c7d3b1e9f44")

// FeeEscrowModule holds relayer fees until a packet completes.
const FeeEscrowModule = "feeibc"

// Config tunes the simulated venue.
type Config struct {
	// SwapFee is taken from every hop of a swap.
	SwapFee sdkmath.LegacyDec
	// HostConnectionID is reported in account metadata.
	HostConnectionID string
}

// DefaultConfig returns a 0.3% swap fee venue.
func DefaultConfig() Config {
	return Config{
		SwapFee:          sdkmath.LegacyNewDecWithPrec(3, 3),
		HostConnectionID: "connection-0",
	}
}

// ChannelState is the lifecycle of a simulated account channel.
type ChannelState string

const (
	ChannelInit   ChannelState = "INIT"
	ChannelOpen   ChannelState = "OPEN"
	ChannelClosed ChannelState = "CLOSED"
)

// AccountChannel is the ordered channel of one interchain account.
type AccountChannel struct {
	PortID       string       `json:"port_id"`
	ChannelID    string       `json:"channel_id"`
	ConnectionID string       `json:"connection_id"`
	State        ChannelState `json:"state"`
	Address      string       `json:"address"`
}

// PacketKind is what an outbound packet carries.
type PacketKind string

const (
	PacketHandshake PacketKind = "handshake"
	PacketTransfer  PacketKind = "transfer"
	PacketICA       PacketKind = "ica"
)

// Outbound is a packet or handshake waiting for the relayer.
type Outbound struct {
	ID        uint64     `json:"id"`
	Kind      PacketKind `json:"kind"`
	PortID    string     `json:"port_id"`
	ChannelID string     `json:"channel_id"`
	Sequence  uint64     `json:"sequence"`
	Sender    string     `json:"sender,omitempty"`
	Receiver  string     `json:"receiver,omitempty"`
	Token     sdk.Coin   `json:"token"`
	Data      []byte     `json:"data,omitempty"`
}

type escrowedFee struct {
	Payer string       `json:"payer"`
	Fee   feetypes.Fee `json:"fee"`
}

// Venue is an in-memory stand-in for the local IBC stack and the remote
// exchange. It serves as the bank, transfer, interchain account, relayer fee
// and oracle collaborator of the keeper.
type Venue struct {
	key    storetypes.StoreKey
	config Config
}

// NewVenue creates a venue persisting under key.
func NewVenue(key storetypes.StoreKey, config Config) *Venue {
	return &Venue{key: key, config: config}
}

// ---------------------------------------------------------------------------
// Bank

// Fund mints coins to addr on the local chain.
func (v *Venue) Fund(ctx sdk.Context, addr sdk.AccAddress, coins sdk.Coins) {
	v.setLocal(ctx, addr.String(), v.local(ctx, addr.String()).Add(coins...))
}

// Balances returns every local coin held by addr.
func (v *Venue) Balances(ctx sdk.Context, addr sdk.AccAddress) sdk.Coins {
	return v.local(ctx, addr.String())
}

// RemoteBalances returns every coin held by a remote account.
func (v *Venue) RemoteBalances(ctx sdk.Context, address string) sdk.Coins {
	var coins sdk.Coins
	getJSON(v.store(ctx), prefixed(RemoteBalancePrefix, address), &coins)
	return coins
}

func (v *Venue) GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin {
	return sdk.NewCoin(denom, v.local(sdk.UnwrapSDKContext(ctx), addr.String()).AmountOf(denom))
}

func (v *Venue) SendCoins(ctx context.Context, fromAddr, toAddr sdk.AccAddress, amt sdk.Coins) error {
	return v.moveLocal(sdk.UnwrapSDKContext(ctx), fromAddr.String(), toAddr.String(), amt)
}

func (v *Venue) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	return v.moveLocal(sdk.UnwrapSDKContext(ctx), senderAddr.String(), authtypes.NewModuleAddress(recipientModule).String(), amt)
}

func (v *Venue) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	return v.moveLocal(sdk.UnwrapSDKContext(ctx), authtypes.NewModuleAddress(senderModule).String(), recipientAddr.String(), amt)
}

func (v *Venue) local(ctx sdk.Context, addr string) sdk.Coins {
	var coins sdk.Coins
	getJSON(v.store(ctx), prefixed(LocalBalancePrefix, addr), &coins)
	return coins
}

func (v *Venue) setLocal(ctx sdk.Context, addr string, coins sdk.Coins) {
	setJSON(v.store(ctx), prefixed(LocalBalancePrefix, addr), coins)
}

func (v *Venue) setRemote(ctx sdk.Context, addr string, coins sdk.Coins) {
	setJSON(v.store(ctx), prefixed(RemoteBalancePrefix, addr), coins)
}

func (v *Venue) debitLocal(ctx sdk.Context, addr string, amt sdk.Coins) error {
	balance := v.local(ctx, addr)
	remaining, negative := balance.SafeSub(amt...)
	if negative {
		return errorsmod.Wrapf(sdkerrors.ErrInsufficientFunds, "%s has %s, needs %s", addr, balance, amt)
	}
	v.setLocal(ctx, addr, remaining)
	return nil
}

func (v *Venue) moveLocal(ctx sdk.Context, from, to string, amt sdk.Coins) error {
	if err := v.debitLocal(ctx, from, amt); err != nil {
		return err
	}
	v.setLocal(ctx, to, v.local(ctx, to).Add(amt...))
	return nil
}

// ---------------------------------------------------------------------------
// ICS-20

func (v *Venue) Transfer(goCtx context.Context, msg *transfertypes.MsgTransfer) (*transfertypes.MsgTransferResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := v.debitLocal(ctx, msg.Sender, sdk.NewCoins(msg.Token)); err != nil {
		return nil, err
	}
	seq := v.enqueue(ctx, Outbound{
		Kind:      PacketTransfer,
		PortID:    msg.SourcePort,
		ChannelID: msg.SourceChannel,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Token:     msg.Token,
	})
	return &transfertypes.MsgTransferResponse{Sequence: seq}, nil
}

// ---------------------------------------------------------------------------
// ICS-27 controller

func (v *Venue) RegisterInterchainAccount(goCtx context.Context, msg *icacontrollertypes.MsgRegisterInterchainAccount) (*icacontrollertypes.MsgRegisterInterchainAccountResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	portID, err := icatypes.NewControllerPortID(msg.Owner)
	if err != nil {
		return nil, err
	}
	if ch, found := v.channel(ctx, portID); found && ch.State == ChannelOpen {
		return nil, errorsmod.Wrapf(icatypes.ErrActiveChannelAlreadySet, "existing active channel %s for portID %s", ch.ChannelID, portID)
	}

	address := remoteAddress(msg.ConnectionId, portID)
	ch := AccountChannel{
		PortID:       portID,
		ChannelID:    channeltypes.FormatChannelIdentifier(v.nextCounter(ctx, "channel")),
		ConnectionID: msg.ConnectionId,
		State:        ChannelInit,
		Address:      address,
	}
	setJSON(v.store(ctx), prefixed(ChannelPrefix, portID), ch)
	v.enqueueRaw(ctx, Outbound{Kind: PacketHandshake, PortID: portID, ChannelID: ch.ChannelID})

	return &icacontrollertypes.MsgRegisterInterchainAccountResponse{ChannelId: ch.ChannelID, PortId: portID}, nil
}

func (v *Venue) SendTx(goCtx context.Context, msg *icacontrollertypes.MsgSendTx) (*icacontrollertypes.MsgSendTxResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	portID, err := icatypes.NewControllerPortID(msg.Owner)
	if err != nil {
		return nil, err
	}
	channelID, found := v.GetActiveChannelID(ctx, msg.ConnectionId, portID)
	if !found {
		return nil, errorsmod.Wrapf(icatypes.ErrActiveChannelNotFound, "failed to retrieve active channel on connection %s for port %s", msg.ConnectionId, portID)
	}
	if err := msg.PacketData.ValidateBasic(); err != nil {
		return nil, err
	}
	seq := v.enqueue(ctx, Outbound{
		Kind:      PacketICA,
		PortID:    portID,
		ChannelID: channelID,
		Data:      msg.PacketData.Data,
	})
	return &icacontrollertypes.MsgSendTxResponse{Sequence: seq}, nil
}

func (v *Venue) GetActiveChannelID(ctx sdk.Context, connectionID, portID string) (string, bool) {
	ch, found := v.channel(ctx, portID)
	if !found || ch.State != ChannelOpen || ch.ConnectionID != connectionID {
		return "", false
	}
	return ch.ChannelID, true
}

func (v *Venue) GetInterchainAccountAddress(ctx sdk.Context, connectionID, portID string) (string, bool) {
	ch, found := v.channel(ctx, portID)
	if !found || ch.State != ChannelOpen || ch.ConnectionID != connectionID {
		return "", false
	}
	return ch.Address, true
}

// Channel returns the account channel bound to portID.
func (v *Venue) Channel(ctx sdk.Context, portID string) (AccountChannel, bool) {
	return v.channel(ctx, portID)
}

func (v *Venue) channel(ctx sdk.Context, portID string) (AccountChannel, bool) {
	var ch AccountChannel
	found := getJSON(v.store(ctx), prefixed(ChannelPrefix, portID), &ch)
	return ch, found
}

func (v *Venue) setChannelState(ctx sdk.Context, portID string, state ChannelState) {
	ch, found := v.channel(ctx, portID)
	if !found {
		return
	}
	ch.State = state
	setJSON(v.store(ctx), prefixed(ChannelPrefix, portID), ch)
}

// remoteAddress is stable per connection and port, so a reopened account
// keeps its address.
func remoteAddress(connectionID, portID string) string {
	id := uuid.NewSHA1(remoteAccountNamespace, []byte(connectionID+"/"+portID))
	return "venue1" + strings.ReplaceAll(id.String(), "-", "")
}

// ---------------------------------------------------------------------------
// ICS-29

// PayPacketFee escrows the fee for the next packet sent on the channel.
func (v *Venue) PayPacketFee(goCtx context.Context, msg *feetypes.MsgPayPacketFee) (*feetypes.MsgPayPacketFeeResponse, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := v.moveLocal(ctx, msg.Signer, authtypes.NewModuleAddress(FeeEscrowModule).String(), msg.Fee.Total()); err != nil {
		return nil, err
	}
	seq := v.peekSequence(ctx, msg.SourcePortId, msg.SourceChannelId)
	setJSON(v.store(ctx), feeKey(msg.SourcePortId, msg.SourceChannelId, seq), escrowedFee{Payer: msg.Signer, Fee: msg.Fee})
	return &feetypes.MsgPayPacketFeeResponse{}, nil
}

// settleFee pays the relayer for a completed packet and refunds the rest.
func (v *Venue) settleFee(ctx sdk.Context, out Outbound, relayer sdk.AccAddress, timedOut bool) error {
	store := v.store(ctx)
	key := feeKey(out.PortID, out.ChannelID, out.Sequence)
	var escrowed escrowedFee
	if !getJSON(store, key, &escrowed) {
		return nil
	}
	store.Delete(key)

	total := escrowed.Fee.Total()
	reward := escrowed.Fee.RecvFee.Add(escrowed.Fee.AckFee...)
	if timedOut {
		reward = escrowed.Fee.TimeoutFee
	}
	escrow := authtypes.NewModuleAddress(FeeEscrowModule).String()
	if err := v.moveLocal(ctx, escrow, relayer.String(), reward); err != nil {
		return err
	}
	return v.moveLocal(ctx, escrow, escrowed.Payer, total.Sub(reward...))
}

func feeKey(portID, channelID string, sequence uint64) []byte {
	return prefixed(PacketFeePrefix, portID, channelID, fmt.Sprintf("%020d", sequence))
}

// ---------------------------------------------------------------------------
// Oracle

// SetPrice quotes denom in the oracle's base currency.
func (v *Venue) SetPrice(ctx sdk.Context, denom string, price sdkmath.LegacyDec) {
	v.store(ctx).Set(prefixed(PricePrefix, denom), []byte(price.String()))
}

// RemovePrice withdraws the quote for denom.
func (v *Venue) RemovePrice(ctx sdk.Context, denom string) {
	v.store(ctx).Delete(prefixed(PricePrefix, denom))
}

func (v *Venue) GetPrice(goCtx context.Context, denom string) (sdkmath.LegacyDec, bool) {
	bz := v.store(sdk.UnwrapSDKContext(goCtx)).Get(prefixed(PricePrefix, denom))
	if bz == nil {
		return sdkmath.LegacyDec{}, false
	}
	price, err := sdkmath.LegacyNewDecFromStr(string(bz))
	if err != nil {
		panic(err)
	}
	return price, true
}

// SwapPath routes directly when either side is the base denom and through
// the base denom otherwise.
func (v *Venue) SwapPath(goCtx context.Context, baseDenom, from, to string) ([]types.SwapHop, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	if from == to {
		return nil, errorsmod.Wrapf(types.ErrNoSwapRoute, "%s to itself", from)
	}
	for _, denom := range []string{from, to} {
		if _, ok := v.GetPrice(ctx, denom); !ok {
			return nil, errorsmod.Wrapf(types.ErrNoSwapRoute, "no price for %s", denom)
		}
	}
	if from == baseDenom || to == baseDenom {
		return []types.SwapHop{{PoolID: v.pool(ctx, from, to), TokenOut: to}}, nil
	}
	return []types.SwapHop{
		{PoolID: v.pool(ctx, from, baseDenom), TokenOut: baseDenom},
		{PoolID: v.pool(ctx, baseDenom, to), TokenOut: to},
	}, nil
}

// pool returns the id of the a/b pool, creating it on first use.
func (v *Venue) pool(ctx sdk.Context, a, b string) uint64 {
	pair := []string{a, b}
	sort.Strings(pair)
	key := prefixed(PoolPrefix, pair...)
	store := v.store(ctx)
	if bz := store.Get(key); bz != nil {
		return sdk.BigEndianToUint64(bz)
	}
	id := v.nextCounter(ctx, "pool") + 1
	store.Set(key, sdk.Uint64ToBigEndian(id))
	return id
}

// quote converts amount of from into to at oracle prices, less the fee of every hop.
func (v *Venue) quote(ctx sdk.Context, amount sdkmath.Int, from string, hops []types.SwapHop) (sdkmath.Int, error) {
	if len(hops) == 0 {
		return sdkmath.Int{}, types.ErrNoSwapRoute
	}
	value := sdkmath.LegacyNewDecFromInt(amount)
	denom := from
	for _, hop := range hops {
		pin, ok := v.GetPrice(ctx, denom)
		if !ok {
			return sdkmath.Int{}, errorsmod.Wrapf(types.ErrNoSwapRoute, "no price for %s", denom)
		}
		pout, ok := v.GetPrice(ctx, hop.TokenOut)
		if !ok || pout.IsZero() {
			return sdkmath.Int{}, errorsmod.Wrapf(types.ErrNoSwapRoute, "no price for %s", hop.TokenOut)
		}
		value = value.Mul(pin).Quo(pout).Mul(sdkmath.LegacyOneDec().Sub(v.config.SwapFee))
		denom = hop.TokenOut
	}
	return value.TruncateInt(), nil
}

// ---------------------------------------------------------------------------
// Outbox

// Pending lists the packets waiting for the relayer, oldest first.
func (v *Venue) Pending(ctx sdk.Context) []Outbound {
	iterator := storetypes.KVStorePrefixIterator(v.store(ctx), OutboxPrefix)
	defer iterator.Close()

	var out []Outbound
	for ; iterator.Valid(); iterator.Next() {
		var o Outbound
		if err := json.Unmarshal(iterator.Value(), &o); err != nil {
			panic(err)
		}
		out = append(out, o)
	}
	return out
}

func (v *Venue) peekSequence(ctx sdk.Context, portID, channelID string) uint64 {
	bz := v.store(ctx).Get(prefixed(SequencePrefix, portID, channelID))
	if bz == nil {
		return 1
	}
	return sdk.BigEndianToUint64(bz)
}

// enqueue assigns the channel's next sequence to o and queues it.
func (v *Venue) enqueue(ctx sdk.Context, o Outbound) uint64 {
	seq := v.peekSequence(ctx, o.PortID, o.ChannelID)
	v.store(ctx).Set(prefixed(SequencePrefix, o.PortID, o.ChannelID), sdk.Uint64ToBigEndian(seq+1))
	o.Sequence = seq
	v.enqueueRaw(ctx, o)
	return seq
}

func (v *Venue) enqueueRaw(ctx sdk.Context, o Outbound) {
	o.ID = v.nextCounter(ctx, "outbox")
	setJSON(v.store(ctx), append(append([]byte{}, OutboxPrefix...), sdk.Uint64ToBigEndian(o.ID)...), o)
}

func (v *Venue) dequeue(ctx sdk.Context, o Outbound) {
	v.store(ctx).Delete(append(append([]byte{}, OutboxPrefix...), sdk.Uint64ToBigEndian(o.ID)...))
}
