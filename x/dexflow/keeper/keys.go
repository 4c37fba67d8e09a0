package keeper

import (
	"encoding/binary"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Store key prefixes
var (
	ParamsKey                    = []byte{0x01}
	NextWorkflowIDKey            = []byte{0x02}
	WorkflowKeyPrefix            = []byte{0x03}
	PendingPacketKeyPrefix       = []byte{0x04}
	PendingRegistrationKeyPrefix = []byte{0x05}
	AlarmQueueKeyPrefix          = []byte{0x06}
	ArmedAlarmKeyPrefix          = []byte{0x07}
)

// GetWorkflowKey returns the store key for a workflow state
func GetWorkflowKey(id uint64) []byte {
	return append(append([]byte{}, WorkflowKeyPrefix...), sdk.Uint64ToBigEndian(id)...)
}

// GetPendingPacketKey returns the store key for an in-flight packet.
// Port and channel identifiers cannot contain '/'.
func GetPendingPacketKey(portID, channelID string, sequence uint64) []byte {
	key := append([]byte{}, PendingPacketKeyPrefix...)
	key = append(key, []byte(portID+"/"+channelID+"/")...)
	return append(key, sdk.Uint64ToBigEndian(sequence)...)
}

// GetPendingRegistrationKey returns the store key for a pending account registration
func GetPendingRegistrationKey(portID string) []byte {
	return append(append([]byte{}, PendingRegistrationKeyPrefix...), []byte(portID)...)
}

// GetAlarmKey orders alarms by fire time, then workflow id.
func GetAlarmKey(fireAt time.Time, id uint64) []byte {
	key := append([]byte{}, AlarmQueueKeyPrefix...)
	key = append(key, sdk.Uint64ToBigEndian(uint64(fireAt.UnixNano()))...)
	return append(key, sdk.Uint64ToBigEndian(id)...)
}

// GetArmedAlarmKey returns the store key holding the fire time of the one
// alarm workflow id is waiting for.
func GetArmedAlarmKey(id uint64) []byte {
	return append(append([]byte{}, ArmedAlarmKeyPrefix...), sdk.Uint64ToBigEndian(id)...)
}

// GetAlarmQueueEndKey is the exclusive upper bound of alarms due at or before now.
func GetAlarmQueueEndKey(now time.Time) []byte {
	key := append([]byte{}, AlarmQueueKeyPrefix...)
	return append(key, sdk.Uint64ToBigEndian(uint64(now.UnixNano())+1)...)
}

// ParseAlarmKey is the inverse of GetAlarmKey.
func ParseAlarmKey(key []byte) (time.Time, uint64, error) {
	if len(key) != len(AlarmQueueKeyPrefix)+16 {
		return time.Time{}, 0, fmt.Errorf("invalid alarm key length %d", len(key))
	}
	body := key[len(AlarmQueueKeyPrefix):]
	fireAt := time.Unix(0, int64(binary.BigEndian.Uint64(body[:8]))).UTC()
	return fireAt, binary.BigEndian.Uint64(body[8:]), nil
}
