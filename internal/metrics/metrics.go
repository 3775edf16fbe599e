// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lumacart/order-gateway/internal/domain"
)

type Metrics struct {
	webhookDeliveries *prometheus.CounterVec
	transitions       *prometheus.CounterVec
}

// New registers the gateway collectors on the given registerer. Tests pass
// a fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order_gateway",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by kind and result.",
		}, []string{"kind", "result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order_gateway",
			Name:      "lifecycle_transitions_total",
			Help:      "Lifecycle engine invocations by event and outcome.",
		}, []string{"event", "outcome"}),
	}
}

func (m *Metrics) ObserveWebhook(kind, result string) {
	m.webhookDeliveries.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveTransition(event domain.LifecycleEvent, code domain.OutcomeCode) {
	m.transitions.WithLabelValues(string(event), string(code)).Inc()
}
