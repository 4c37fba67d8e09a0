package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WorkflowRecord is an exported workflow together with its encoded state.
type WorkflowRecord struct {
	ID    uint64          `json:"id"`
	State json.RawMessage `json:"state"`
}

// AlarmRecord is a scheduled alarm owned by a workflow.
type AlarmRecord struct {
	WorkflowID uint64    `json:"workflow_id"`
	FireAt     time.Time `json:"fire_at"`
}

// PendingPacketRecord maps an in-flight packet to the workflow awaiting it.
type PendingPacketRecord struct {
	PortID     string `json:"port_id"`
	ChannelID  string `json:"channel_id"`
	Sequence   uint64 `json:"sequence"`
	WorkflowID uint64 `json:"workflow_id"`
}

// PendingRegistrationRecord maps an ICA controller port to the workflow
// registering it. A handshake still open at Deadline is reported once as a
// timeout; a late acknowledgement is still routed.
type PendingRegistrationRecord struct {
	PortID     string    `json:"port_id"`
	WorkflowID uint64    `json:"workflow_id"`
	Deadline   time.Time `json:"deadline"`
	TimedOut   bool      `json:"timed_out"`
}

// GenesisState is the dexflow module genesis.
type GenesisState struct {
	Params               Params                      `json:"params"`
	NextWorkflowID       uint64                      `json:"next_workflow_id"`
	Workflows            []WorkflowRecord            `json:"workflows"`
	Alarms               []AlarmRecord               `json:"alarms"`
	PendingPackets       []PendingPacketRecord       `json:"pending_packets"`
	PendingRegistrations []PendingRegistrationRecord `json:"pending_registrations"`
}

// DefaultGenesis returns the default genesis state for the dexflow module.
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:               DefaultParams(),
		NextWorkflowID:       1,
		Workflows:            []WorkflowRecord{},
		Alarms:               []AlarmRecord{},
		PendingPackets:       []PendingPacketRecord{},
		PendingRegistrations: []PendingRegistrationRecord{},
	}
}

// Validate ensures the genesis state is well-formed. Workflow states are
// decoded and checked by the keeper, which owns the task registry.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	if gs.NextWorkflowID == 0 {
		return fmt.Errorf("next workflow id must be positive")
	}

	known := make(map[uint64]struct{}, len(gs.Workflows))
	for _, wf := range gs.Workflows {
		if wf.ID == 0 || wf.ID >= gs.NextWorkflowID {
			return fmt.Errorf("workflow id %d outside [1,%d)", wf.ID, gs.NextWorkflowID)
		}
		if _, dup := known[wf.ID]; dup {
			return fmt.Errorf("duplicate workflow id %d", wf.ID)
		}
		if len(wf.State) == 0 {
			return fmt.Errorf("workflow %d has no state", wf.ID)
		}
		known[wf.ID] = struct{}{}
	}

	alarmed := make(map[uint64]struct{}, len(gs.Alarms))
	for _, alarm := range gs.Alarms {
		if _, ok := known[alarm.WorkflowID]; !ok {
			return fmt.Errorf("alarm references unknown workflow %d", alarm.WorkflowID)
		}
		if _, dup := alarmed[alarm.WorkflowID]; dup {
			return fmt.Errorf("workflow %d has more than one alarm", alarm.WorkflowID)
		}
		alarmed[alarm.WorkflowID] = struct{}{}
		if alarm.FireAt.IsZero() {
			return fmt.Errorf("alarm for workflow %d has no fire time", alarm.WorkflowID)
		}
	}

	packets := make(map[string]struct{}, len(gs.PendingPackets))
	for _, p := range gs.PendingPackets {
		if strings.TrimSpace(p.PortID) == "" || strings.TrimSpace(p.ChannelID) == "" {
			return fmt.Errorf("pending packet missing port or channel")
		}
		if p.Sequence == 0 {
			return fmt.Errorf("pending packet on %s/%s has zero sequence", p.PortID, p.ChannelID)
		}
		if _, ok := known[p.WorkflowID]; !ok {
			return fmt.Errorf("pending packet references unknown workflow %d", p.WorkflowID)
		}
		key := fmt.Sprintf("%s/%s/%d", p.PortID, p.ChannelID, p.Sequence)
		if _, dup := packets[key]; dup {
			return fmt.Errorf("duplicate pending packet %s", key)
		}
		packets[key] = struct{}{}
	}

	ports := make(map[string]struct{}, len(gs.PendingRegistrations))
	for _, r := range gs.PendingRegistrations {
		if strings.TrimSpace(r.PortID) == "" {
			return fmt.Errorf("pending registration missing port")
		}
		if _, ok := known[r.WorkflowID]; !ok {
			return fmt.Errorf("pending registration references unknown workflow %d", r.WorkflowID)
		}
		if _, dup := ports[r.PortID]; dup {
			return fmt.Errorf("duplicate pending registration for port %s", r.PortID)
		}
		ports[r.PortID] = struct{}{}
	}

	return nil
}
