package types

import "encoding/json"

// WorkflowInfo is the query view of one workflow.
type WorkflowInfo struct {
	ID            uint64          `json:"id"`
	Stage         string          `json:"stage"`
	Label         string          `json:"label"`
	AwaitingRetry bool            `json:"awaiting_retry"`
	Terminal      bool            `json:"terminal"`
	State         json.RawMessage `json:"state"`
}
