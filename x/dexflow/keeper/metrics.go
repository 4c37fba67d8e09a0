package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DexflowMetrics holds all Prometheus metrics for the dexflow module
type DexflowMetrics struct {
	WorkflowsStarted   *prometheus.CounterVec
	WorkflowsCompleted *prometheus.CounterVec
	StageTransitions   *prometheus.CounterVec
	RetriesScheduled   *prometheus.CounterVec
	DeliveriesDeferred *prometheus.CounterVec
	AlarmsFired        prometheus.Counter
	AlarmBacklog       prometheus.Gauge
	IBCCallbacks       *prometheus.CounterVec
	OutboundMsgs       *prometheus.CounterVec
	ProceedsOut        *prometheus.CounterVec
}

var (
	dexflowMetricsOnce sync.Once
	dexflowMetrics     *DexflowMetrics
)

// NewDexflowMetrics creates and registers dexflow metrics (singleton pattern)
func NewDexflowMetrics() *DexflowMetrics {
	dexflowMetricsOnce.Do(func() {
		dexflowMetrics = &DexflowMetrics{
			WorkflowsStarted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "workflows_started_total",
					Help:      "Total number of workflows started",
				},
				[]string{"task_type"},
			),
			WorkflowsCompleted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "workflows_completed_total",
					Help:      "Total number of workflows reaching a terminal state",
				},
				[]string{"outcome", "stage"},
			),
			StageTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "stage_transitions_total",
					Help:      "Workflow stage transitions",
				},
				[]string{"from", "to"},
			),
			RetriesScheduled: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "retries_scheduled_total",
					Help:      "Stages parked until a retry alarm",
				},
				[]string{"stage"},
			),
			DeliveriesDeferred: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "deliveries_deferred_total",
					Help:      "Notifications whose first delivery failed",
				},
				[]string{"kind"},
			),
			AlarmsFired: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "alarms_fired_total",
					Help:      "Alarms processed by EndBlock",
				},
			),
			AlarmBacklog: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "alarm_backlog",
					Help:      "Due alarms left over after the last EndBlock",
				},
			),
			IBCCallbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "ibc_callbacks_total",
					Help:      "IBC callbacks routed to workflows",
				},
				[]string{"callback", "port"},
			),
			OutboundMsgs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "outbound_msgs_total",
					Help:      "Messages dispatched on behalf of workflows",
				},
				[]string{"type"},
			),
			ProceedsOut: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dexflow",
					Name:      "proceeds_total",
					Help:      "Swap proceeds delivered by completed workflows",
				},
				[]string{"denom"},
			),
		}
	})
	return dexflowMetrics
}

// GetDexflowMetrics returns the singleton metrics instance
func GetDexflowMetrics() *DexflowMetrics {
	return NewDexflowMetrics()
}
