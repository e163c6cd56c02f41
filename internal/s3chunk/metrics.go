package s3chunk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
)

type metrics struct {
	ops         *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bytes       *prometheus.CounterVec
	concatParts prometheus.Counter
}

// newMetrics creates the adapter collectors and registers them on reg.
// A nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Chunk storage operations by result.",
		}, []string{"op", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of chunk storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved by chunk storage, by direction.",
		}, []string{"direction"}),
		concatParts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concat_parts_total",
			Help:      "Parts copied into multipart sessions by concat.",
		}),
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch chunk.KindOf(err) {
	case chunk.KindNotFound:
		return "not_found"
	case chunk.KindAlreadyExists:
		return "already_exists"
	case chunk.KindInvalidArgument:
		return "invalid_argument"
	case chunk.KindAccessDenied:
		return "access_denied"
	}
	return "error"
}

// track records one finished operation. Use as
// defer s.track(op, time.Now(), &err).
func (s *Storage) track(op string, start time.Time, err *error) {
	s.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.ops.WithLabelValues(op, resultLabel(*err)).Inc()
}
