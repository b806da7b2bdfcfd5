package metrics

import (
	"sync"
	"time"

	"officequeue/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "office_queue"

var (
	once sync.Once

	queueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Number of visitors currently waiting.",
	})

	queueJoins = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_joins_total",
		Help:      "Successful queue joins.",
	})

	queueLeaves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_leaves_total",
		Help:      "Visitors who left the queue on their own.",
	})

	queueServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_served_total",
			Help:      "Queue heads finished by the operator, by outcome.",
		},
		[]string{"outcome"},
	)

	officeStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "office_status",
			Help:      "1 for the current office status, 0 otherwise.",
		},
		[]string{"status"},
	)

	broadcastMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Broadcast deliveries by result.",
		},
		[]string{"result"},
	)

	updateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "update_processing_seconds",
		Help:      "Time spent processing Telegram updates.",
		Buckets:   prometheus.DefBuckets,
	})

	handlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_errors_total",
		Help:      "Recovered panics and failed handlers.",
	})

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP and gRPC API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			queueLength,
			queueJoins,
			queueLeaves,
			queueServed,
			officeStatus,
			broadcastMessages,
			updateDuration,
			handlerErrors,
			apiRequests,
		)
	})
}

func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

func IncJoin() {
	queueJoins.Inc()
}

func IncLeave() {
	queueLeaves.Inc()
}

func IncServed(outcome string) {
	queueServed.WithLabelValues(outcome).Inc()
}

// SetOfficeStatus flips the status gauge so exactly one label is 1.
func SetOfficeStatus(status models.OfficeState) {
	for _, s := range []models.OfficeState{models.OfficeOpen, models.OfficeClosed, models.OfficePaused} {
		v := 0.0
		if s == status {
			v = 1
		}
		officeStatus.WithLabelValues(string(s)).Set(v)
	}
}

func AddBroadcast(delivered, failed int) {
	broadcastMessages.WithLabelValues("delivered").Add(float64(delivered))
	broadcastMessages.WithLabelValues("failed").Add(float64(failed))
}

func ObserveUpdate(d time.Duration) {
	updateDuration.Observe(d.Seconds())
}

func IncHandlerError() {
	handlerErrors.Inc()
}

// IncAPI increments the counter for an endpoint label.
func IncAPI(endpoint string) {
	apiRequests.WithLabelValues(endpoint).Inc()
}
