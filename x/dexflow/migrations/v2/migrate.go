package v2

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// Key prefixes for the v1->v2 migration.
// NOTE: duplicated from keeper/keys.go on purpose. A migration must read the
// layout of the version it migrates from.
var (
	WorkflowKeyPrefix   = []byte{0x03}
	AlarmQueueKeyPrefix = []byte{0x06}
	ArmedAlarmKeyPrefix = []byte{0x07}
)

// LegacyState is a workflow as stored at consensus version 1: a flat record
// without envelope or version, with the transfer cursor as two indexes and
// no retry flag.
type LegacyState struct {
	Stage         string                 `json:"stage"`
	Task          *workflow.TaskEnvelope `json:"task,omitempty"`
	Owner         string                 `json:"owner,omitempty"`
	Connection    types.Connection       `json:"connection"`
	CoinIndex     uint32                 `json:"coin_index"`
	LastCoinIndex uint32                 `json:"last_coin_index"`
	AmountOut     *sdk.Coin              `json:"amount_out,omitempty"`
	Label         string                 `json:"label,omitempty"`

	Inner          *LegacyState `json:"inner,omitempty"`
	PendingKind    string       `json:"pending_kind,omitempty"`
	PendingPayload []byte       `json:"pending_payload,omitempty"`
}

// Migrate rewrites every v1 workflow into the versioned v2 envelope. A
// workflow with a queued alarm was waiting for a retry, so its stage is
// marked as awaiting one and its latest alarm becomes the armed one; older
// alarms of the same workflow are dropped. States already at v2 are left
// untouched.
func Migrate(ctx sdk.Context, storeKey storetypes.StoreKey, tasks *workflow.TaskRegistry) error {
	ctx.Logger().Info("Starting dexflow module v1 to v2 migration")
	store := ctx.KVStore(storeKey)

	alarmed := alarmedWorkflows(store)
	armAlarms(store, alarmed)

	type rewrite struct {
		key []byte
		bz  []byte
	}
	var rewrites []rewrite
	skipped := 0

	iterator := storetypes.KVStorePrefixIterator(store, WorkflowKeyPrefix)
	for ; iterator.Valid(); iterator.Next() {
		id := binary.BigEndian.Uint64(iterator.Key()[len(WorkflowKeyPrefix):])
		if _, err := tasks.UnmarshalState(iterator.Value()); err == nil {
			skipped++
			continue
		}

		var legacy LegacyState
		if err := json.Unmarshal(iterator.Value(), &legacy); err != nil {
			iterator.Close()
			return fmt.Errorf("workflow %d: decode v1 state: %w", id, err)
		}
		_, awaiting := alarmed[id]
		state, err := ConvertState(tasks, legacy, awaiting)
		if err != nil {
			iterator.Close()
			return fmt.Errorf("workflow %d: %w", id, err)
		}
		bz, err := workflow.MarshalState(state)
		if err != nil {
			iterator.Close()
			return fmt.Errorf("workflow %d: encode v2 state: %w", id, err)
		}
		rewrites = append(rewrites, rewrite{key: append([]byte{}, iterator.Key()...), bz: bz})
	}
	iterator.Close()

	for _, rw := range rewrites {
		store.Set(rw.key, rw.bz)
	}

	ctx.Logger().Info("dexflow module v1 to v2 migration completed", "migrated", len(rewrites), "skipped", skipped)
	return nil
}

// ConvertState maps a v1 record onto the v2 state variants.
func ConvertState(tasks *workflow.TaskRegistry, legacy LegacyState, awaiting bool) (workflow.State, error) {
	stage, err := workflow.ParseStage(legacy.Stage)
	if err != nil {
		return nil, err
	}

	var task workflow.SwapTask
	switch stage {
	case workflow.StageOpeningAccount, workflow.StageTransferOut, workflow.StageSwapping, workflow.StageTransferIn:
		if legacy.Task == nil {
			return nil, fmt.Errorf("%s state without task", stage)
		}
		if task, err = tasks.DecodeTask(*legacy.Task); err != nil {
			return nil, err
		}
	}

	switch stage {
	case workflow.StageOpeningAccount:
		return workflow.OpeningAccount{Task: task, Owner: legacy.Owner, Connection: legacy.Connection, AwaitingRetry: awaiting}, nil
	case workflow.StageTransferOut:
		cursor := types.CoinCursor{Current: legacy.CoinIndex, Last: legacy.LastCoinIndex}
		if err := cursor.Validate(len(task.Coins())); err != nil {
			return nil, err
		}
		return workflow.TransferOut{Task: task, Cursor: cursor, AwaitingRetry: awaiting}, nil
	case workflow.StageSwapping:
		return workflow.Swapping{Task: task, AwaitingRetry: awaiting}, nil
	case workflow.StageTransferIn:
		if legacy.AmountOut == nil {
			return nil, fmt.Errorf("transfer_in state without amount_out")
		}
		return workflow.TransferIn{Task: task, AmountOut: *legacy.AmountOut, AwaitingRetry: awaiting}, nil
	case workflow.StageDelivering:
		if legacy.Inner == nil {
			return nil, fmt.Errorf("delivering state without inner state")
		}
		inner, err := ConvertState(tasks, *legacy.Inner, false)
		if err != nil {
			return nil, err
		}
		kind, err := parseKind(legacy.PendingKind)
		if err != nil {
			return nil, err
		}
		return workflow.Delivering{Inner: inner, Pending: workflow.Notification{Kind: kind, Payload: legacy.PendingPayload}}, nil
	case workflow.StageDone:
		if legacy.AmountOut == nil {
			return nil, fmt.Errorf("done state without amount_out")
		}
		return workflow.Done{TaskLabel: legacy.Label, AmountOut: *legacy.AmountOut}, nil
	default:
		return nil, fmt.Errorf("stage %s did not exist at v1", stage)
	}
}

func parseKind(name string) (workflow.NotificationKind, error) {
	for _, k := range []workflow.NotificationKind{workflow.NotifyResponse, workflow.NotifyError, workflow.NotifyTimeout} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown v1 pending notification %q", name)
}

// alarmedWorkflows maps every workflow with a queued alarm to the queue
// keys of its alarms, oldest first.
func alarmedWorkflows(store storetypes.KVStore) map[uint64][][]byte {
	out := make(map[uint64][][]byte)
	iterator := storetypes.KVStorePrefixIterator(store, AlarmQueueKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		key := iterator.Key()
		if len(key) != len(AlarmQueueKeyPrefix)+16 {
			continue
		}
		id := binary.BigEndian.Uint64(key[len(key)-8:])
		out[id] = append(out[id], append([]byte{}, key...))
	}
	return out
}

func armAlarms(store storetypes.KVStore, alarmed map[uint64][][]byte) {
	ids := make([]uint64, 0, len(alarmed))
	for id := range alarmed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		keys := alarmed[id]
		for _, key := range keys[:len(keys)-1] {
			store.Delete(key)
		}
		latest := keys[len(keys)-1]
		fireAt := latest[len(AlarmQueueKeyPrefix) : len(AlarmQueueKeyPrefix)+8]
		armedKey := append(append([]byte{}, ArmedAlarmKeyPrefix...), sdk.Uint64ToBigEndian(id)...)
		store.Set(armedKey, append([]byte{}, fireAt...))
	}
}
