package types

// Event types for the dexflow module
const (
	EventTypeWorkflowStarted   = "workflow_started"
	EventTypeStageEntered      = "workflow_stage_entered"
	EventTypeWorkflowDone      = "workflow_done"
	EventTypeWorkflowFailed    = "workflow_failed"
	EventTypeRetryScheduled    = "workflow_retry_scheduled"
	EventTypeDeliveryDeferred  = "workflow_delivery_deferred"
	EventTypeAlarmScheduled    = "workflow_alarm_scheduled"
	EventTypeAlarmFired        = "workflow_alarm_fired"
	EventTypeAccountRegistered = "remote_account_registered"
)

// Event attribute keys
const (
	AttributeKeyWorkflowID = "workflow_id"
	AttributeKeyLabel      = "label"
	AttributeKeyStage      = "stage"
	AttributeKeyFromStage  = "from_stage"
	AttributeKeyAmountOut  = "amount_out"
	AttributeKeyReason     = "reason"
	AttributeKeyKind       = "kind"
	AttributeKeyFireAt     = "fire_at"
	AttributeKeyOwner      = "owner"
	AttributeKeyRemote     = "remote_account"
	AttributeKeyTaskType   = "task_type"
)
