package metrics

import (
	"strconv"

	"barakahAPI/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger counts what the completion ledger does. It satisfies ledger.Recorder.
type Ledger struct {
	toggles    *prometheus.CounterVec
	drift      prometheus.Counter
	pending    prometheus.Counter
	retries    *prometheus.CounterVec
	recoveries prometheus.Counter
}

func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		toggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barakah_toggles_total",
				Help: "Completion toggles by kind, direction and whether the ledger changed",
			},
			[]string{"kind", "on", "changed"},
		),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barakah_level_drift_total",
			Help: "Profiles read with a level that disagrees with their total",
		}),
		pending: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barakah_pending_reconciliations_total",
			Help: "Ledger changes whose profile patch failed or was ambiguous",
		}),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barakah_store_retries_total",
				Help: "Store calls retried after a transient failure",
			},
			[]string{"op"},
		),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barakah_reconciliation_recoveries_total",
			Help: "Pending reconciliations resolved by recomputing the total from the ledger",
		}),
	}
	reg.MustRegister(m.toggles, m.drift, m.pending, m.retries, m.recoveries)
	return m
}

func (m *Ledger) Toggle(kind store.ItemKind, on, changed bool) {
	m.toggles.WithLabelValues(string(kind), strconv.FormatBool(on), strconv.FormatBool(changed)).Inc()
}

func (m *Ledger) Drift() {
	m.drift.Inc()
}

func (m *Ledger) PendingReconciliation() {
	m.pending.Inc()
}

func (m *Ledger) Recovered() {
	m.recoveries.Inc()
}

func (m *Ledger) Retry(op string) {
	m.retries.WithLabelValues(op).Inc()
}
