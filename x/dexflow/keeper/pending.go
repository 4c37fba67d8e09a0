package keeper

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func (k Keeper) setPendingPacket(ctx context.Context, portID, channelID string, sequence, id uint64) {
	k.getStore(ctx).Set(GetPendingPacketKey(portID, channelID, sequence), sdk.Uint64ToBigEndian(id))
}

// takePendingPacket returns and removes the workflow waiting on a packet.
func (k Keeper) takePendingPacket(ctx context.Context, portID, channelID string, sequence uint64) (uint64, bool) {
	store := k.getStore(ctx)
	key := GetPendingPacketKey(portID, channelID, sequence)
	bz := store.Get(key)
	if bz == nil {
		return 0, false
	}
	store.Delete(key)
	return sdk.BigEndianToUint64(bz), true
}

// IteratePendingPackets calls cb for every in-flight packet.
func (k Keeper) IteratePendingPackets(ctx context.Context, cb func(rec types.PendingPacketRecord) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), PendingPacketKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		body := iterator.Key()[len(PendingPacketKeyPrefix):]
		if len(body) < 8 {
			continue
		}
		parts := strings.SplitN(string(body[:len(body)-8]), "/", 3)
		if len(parts) != 3 {
			continue
		}
		rec := types.PendingPacketRecord{
			PortID:     parts[0],
			ChannelID:  parts[1],
			Sequence:   sdk.BigEndianToUint64(body[len(body)-8:]),
			WorkflowID: sdk.BigEndianToUint64(iterator.Value()),
		}
		if cb(rec) {
			break
		}
	}
}

type pendingRegistration struct {
	WorkflowID uint64    `json:"workflow_id"`
	Deadline   time.Time `json:"deadline"`
	TimedOut   bool      `json:"timed_out"`
}

func (k Keeper) setPendingRegistration(ctx context.Context, portID string, id uint64, deadline time.Time, timedOut bool) {
	bz, err := json.Marshal(pendingRegistration{WorkflowID: id, Deadline: deadline.UTC(), TimedOut: timedOut})
	if err != nil {
		panic(err)
	}
	k.getStore(ctx).Set(GetPendingRegistrationKey(portID), bz)
}

// takePendingRegistration returns and removes the workflow registering portID.
func (k Keeper) takePendingRegistration(ctx context.Context, portID string) (uint64, bool) {
	store := k.getStore(ctx)
	key := GetPendingRegistrationKey(portID)
	bz := store.Get(key)
	if bz == nil {
		return 0, false
	}
	store.Delete(key)
	var rec pendingRegistration
	if err := json.Unmarshal(bz, &rec); err != nil {
		panic(err)
	}
	return rec.WorkflowID, true
}

// IteratePendingRegistrations calls cb for every open account handshake.
func (k Keeper) IteratePendingRegistrations(ctx context.Context, cb func(rec types.PendingRegistrationRecord) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), PendingRegistrationKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var rec pendingRegistration
		if err := json.Unmarshal(iterator.Value(), &rec); err != nil {
			panic(err)
		}
		out := types.PendingRegistrationRecord{
			PortID:     string(iterator.Key()[len(PendingRegistrationKeyPrefix):]),
			WorkflowID: rec.WorkflowID,
			Deadline:   rec.Deadline,
			TimedOut:   rec.TimedOut,
		}
		if cb(out) {
			break
		}
	}
}
