package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de dominio del gateway. Viven en un paquete propio para que
// cache, sse y sagas las usen sin depender del paquete http.

var (
	CacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_events_total",
		Help: "Eventos del cache de lecturas por módulo y resultado",
	}, []string{"module", "result"}) // result: hit|miss|error|flush

	StreamMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_stream_messages_total",
		Help: "Mensajes SSE escritos por tipo de evento",
	}, []string{"event"}) // event: message|error|close

	SagaTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_saga_transitions_total",
		Help: "Cambios de estado de sagas",
	}, []string{"state"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limited_total",
		Help: "Requests rechazadas por rate limit",
	}, []string{"route"})

	OperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_operation_duration_seconds",
		Help:    "Latencia de operaciones de recurso (REST y GraphQL)",
		Buckets: prometheus.DefBuckets,
	}, []string{"module", "operation", "transport"})
)

// Register registra las métricas en el registry indicado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{CacheEvents, StreamMessages, SagaTransitions, RateLimited, OperationLatency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
