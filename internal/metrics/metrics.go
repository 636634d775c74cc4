package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "botbuilder"

// Metrics groups the collectors of the workspace engine. One instance is
// shared by every editing session of a process.
type Metrics struct {
	ChangeEvents    *prometheus.CounterVec
	ListenerErrors  prometheus.Counter
	MergeCollisions prometheus.Counter
	RunWarnings     prometheus.Counter
	LoadFailures    prometheus.Counter
	RejectedEdits   prometheus.Counter
	ActiveSessions  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChangeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_events_total",
				Help:      "Change events dispatched to workspace subscribers.",
			},
			[]string{"kind"},
		),
		ListenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Change subscribers that failed while handling an event.",
		}),
		MergeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_collisions_resolved_total",
			Help:      "Quick strategy fragments re-identified before merge.",
		}),
		RunWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "running_bot_warnings_total",
			Help:      "Edits that raised the running-bot warning.",
		}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_load_failures_total",
			Help:      "Workspace documents that failed to load.",
		}),
		RejectedEdits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_edits_total",
			Help:      "Surface edits refused because they would break the program.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Workspaces currently initialized.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ChangeEvents,
			m.ListenerErrors,
			m.MergeCollisions,
			m.RunWarnings,
			m.LoadFailures,
			m.RejectedEdits,
			m.ActiveSessions,
		)
	}
	return m
}
