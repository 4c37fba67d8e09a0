package simulation

import (
	"bytes"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/kv"

	"github.com/paw-chain/dexflow/x/dexflow/keeper"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

// NewDecodeStore returns a function that renders two dexflow store values
// for simulation diffs.
func NewDecodeStore(tasks *workflow.TaskRegistry) func(kvA, kvB kv.Pair) string {
	return func(kvA, kvB kv.Pair) string {
		switch {
		case bytes.Equal(kvA.Key, keeper.ParamsKey):
			return fmt.Sprintf("%s\n%s", kvA.Value, kvB.Value)

		case bytes.Equal(kvA.Key, keeper.NextWorkflowIDKey):
			return fmt.Sprintf("%X\n%X", kvA.Value, kvB.Value)

		case bytes.HasPrefix(kvA.Key, keeper.WorkflowKeyPrefix):
			return fmt.Sprintf("%s\n%s", describeState(tasks, kvA.Value), describeState(tasks, kvB.Value))

		case bytes.HasPrefix(kvA.Key, keeper.AlarmQueueKeyPrefix):
			fireA, idA, errA := keeper.ParseAlarmKey(kvA.Key)
			fireB, idB, errB := keeper.ParseAlarmKey(kvB.Key)
			if errA != nil || errB != nil {
				return fmt.Sprintf("%X\n%X", kvA.Key, kvB.Key)
			}
			return fmt.Sprintf("workflow %d at %s\nworkflow %d at %s", idA, fireA, idB, fireB)

		case bytes.HasPrefix(kvA.Key, keeper.ArmedAlarmKeyPrefix):
			return fmt.Sprintf("%s\n%s", armedAt(kvA.Value), armedAt(kvB.Value))

		case bytes.HasPrefix(kvA.Key, keeper.PendingPacketKeyPrefix),
			bytes.HasPrefix(kvA.Key, keeper.PendingRegistrationKeyPrefix):
			return fmt.Sprintf("%s\n%s", kvA.Value, kvB.Value)

		default:
			panic(fmt.Sprintf("invalid %s key prefix %X", types.ModuleName, kvA.Key[:1]))
		}
	}
}

func armedAt(bz []byte) string {
	if len(bz) != 8 {
		return fmt.Sprintf("%X", bz)
	}
	return time.Unix(0, int64(sdk.BigEndianToUint64(bz))).UTC().String()
}

func describeState(tasks *workflow.TaskRegistry, bz []byte) string {
	st, err := tasks.UnmarshalState(bz)
	if err != nil {
		return fmt.Sprintf("undecodable (%v)", err)
	}
	return fmt.Sprintf("%s %s", st.Stage(), st.Label())
}
