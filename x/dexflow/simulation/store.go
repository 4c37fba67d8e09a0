package simulation

import (
	"encoding/json"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Venue store layout. The venue keeps everything in its own store so that a
// discarded cache context also discards venue side effects.
var (
	LocalBalancePrefix  = []byte{0x01}
	RemoteBalancePrefix = []byte{0x02}
	ChannelPrefix       = []byte{0x03}
	SequencePrefix      = []byte{0x04}
	OutboxPrefix        = []byte{0x05}
	PricePrefix         = []byte{0x06}
	PoolPrefix          = []byte{0x07}
	PacketFeePrefix     = []byte{0x08}
	CounterPrefix       = []byte{0x09}
)

func prefixed(prefix []byte, parts ...string) []byte {
	key := append([]byte{}, prefix...)
	for i, p := range parts {
		if i > 0 {
			key = append(key, '/')
		}
		key = append(key, []byte(p)...)
	}
	return key
}

func getJSON(store storetypes.KVStore, key []byte, out any) bool {
	bz := store.Get(key)
	if bz == nil {
		return false
	}
	if err := json.Unmarshal(bz, out); err != nil {
		panic(err)
	}
	return true
}

func setJSON(store storetypes.KVStore, key []byte, v any) {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	store.Set(key, bz)
}

func (v *Venue) store(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(v.key)
}

// nextCounter returns and bumps the named counter, starting at zero.
func (v *Venue) nextCounter(ctx sdk.Context, name string) uint64 {
	store := v.store(ctx)
	key := prefixed(CounterPrefix, name)
	var n uint64
	if bz := store.Get(key); bz != nil {
		n = sdk.BigEndianToUint64(bz)
	}
	store.Set(key, sdk.Uint64ToBigEndian(n+1))
	return n
}
