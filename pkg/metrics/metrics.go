package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NamespaceFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namespace_context_fetch_total",
			Help: "Total number of namespace-list fetch attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	PreferenceWriteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namespace_context_preference_write_total",
			Help: "Total number of preferred-namespace storage writes, by outcome.",
		},
		[]string{"outcome"},
	)
	HostSelectionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "namespace_context_host_selection_total",
			Help: "Total number of namespace-selection events received from the host.",
		},
	)
	ScriptLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namespace_context_script_load_total",
			Help: "Total number of host-script load attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	// Registry holds only the namespace-context metrics so the status
	// server does not expose unrelated collectors.
	Registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Register registers all namespace-context collectors on Registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(NamespaceFetchTotal)
		Registry.MustRegister(PreferenceWriteTotal)
		Registry.MustRegister(HostSelectionTotal)
		Registry.MustRegister(ScriptLoadTotal)
	})
}

// Handler returns an HTTP handler serving the namespace-context registry.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
