package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersCollectors(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	collectors := New(registry)

	collectors.InstancesCreated.Inc()
	collectors.Instances.Set(3)
	collectors.EventsApplied.WithLabelValues("text", "applied").Inc()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		byName[family.GetName()] = family
	}

	created, exists := byName["harness_instances_created_total"]
	if !exists {
		t.Fatal("instances_created_total not registered")
	}
	if got := created.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("instances_created_total = %v, want 1", got)
	}
	if got := byName["harness_instances"].GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("instances = %v, want 3", got)
	}
	if _, exists := byName["harness_events_applied_total"]; !exists {
		t.Fatal("events_applied_total not registered")
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	New(registry)

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration panic")
		}
	}()
	New(registry)
}
