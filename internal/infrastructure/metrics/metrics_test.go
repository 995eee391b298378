package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistryRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegistry(registry)

	if m.TransactionsPosted == nil || m.TransactionsRejected == nil || m.HTTPRequests == nil || m.DBQueries == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.TransactionsPosted.Inc()
	m.TransactionsRejected.WithLabelValues("unbalanced").Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestNewWithRegistryIsolatedInstances(t *testing.T) {
	// Two instances on separate registries must not collide.
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.TransactionsPosted.Inc()
	b.TransactionsPosted.Inc()
}
