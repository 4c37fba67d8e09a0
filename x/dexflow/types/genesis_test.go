package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

func TestDefaultGenesis(t *testing.T) {
	gs := types.DefaultGenesis()
	require.NotNil(t, gs)
	require.Equal(t, uint64(1), gs.NextWorkflowID)
	require.NoError(t, gs.Validate())
}

func TestGenesisState_Validate(t *testing.T) {
	state := json.RawMessage(`{"version":2}`)
	valid := func() *types.GenesisState {
		gs := types.DefaultGenesis()
		gs.NextWorkflowID = 3
		gs.Workflows = []types.WorkflowRecord{{ID: 1, State: state}, {ID: 2, State: state}}
		gs.Alarms = []types.AlarmRecord{{WorkflowID: 1, FireAt: time.Unix(100, 0).UTC()}}
		gs.PendingPackets = []types.PendingPacketRecord{{PortID: "transfer", ChannelID: "channel-0", Sequence: 4, WorkflowID: 2}}
		gs.PendingRegistrations = []types.PendingRegistrationRecord{{PortID: "icacontroller-dexflow-1", WorkflowID: 1, Deadline: time.Unix(700, 0).UTC()}}
		return gs
	}

	tests := []struct {
		name    string
		mutate  func(*types.GenesisState)
		wantErr bool
	}{
		{"valid", func(*types.GenesisState) {}, false},
		{"zero next id", func(gs *types.GenesisState) { gs.NextWorkflowID = 0 }, true},
		{"id beyond next", func(gs *types.GenesisState) { gs.Workflows[1].ID = 3 }, true},
		{"duplicate id", func(gs *types.GenesisState) { gs.Workflows[1].ID = 1 }, true},
		{"empty state", func(gs *types.GenesisState) { gs.Workflows[0].State = nil }, true},
		{"orphan alarm", func(gs *types.GenesisState) { gs.Alarms[0].WorkflowID = 9 }, true},
		{"second alarm for workflow", func(gs *types.GenesisState) {
			gs.Alarms = append(gs.Alarms, types.AlarmRecord{WorkflowID: 1, FireAt: time.Unix(200, 0).UTC()})
		}, true},
		{"alarm without time", func(gs *types.GenesisState) { gs.Alarms[0].FireAt = time.Time{} }, true},
		{"zero sequence", func(gs *types.GenesisState) { gs.PendingPackets[0].Sequence = 0 }, true},
		{"duplicate packet", func(gs *types.GenesisState) {
			gs.PendingPackets = append(gs.PendingPackets, gs.PendingPackets[0])
		}, true},
		{"duplicate registration", func(gs *types.GenesisState) {
			gs.PendingRegistrations = append(gs.PendingRegistrations, gs.PendingRegistrations[0])
		}, true},
		{"bad params", func(gs *types.GenesisState) { gs.Params.RetryDelay = 0 }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gs := valid()
			tc.mutate(gs)
			err := gs.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
