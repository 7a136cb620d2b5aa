package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actr-go/core/actor"
	"github.com/codewandler/actr-go/core/metrics"
)

// actorMetrics implements actor.ActorMetrics using Prometheus.
type actorMetrics struct {
	messageDuration       *prometheus.HistogramVec
	messagesTotal         *prometheus.CounterVec
	panicTotal            *prometheus.CounterVec
	bouncedTotal          *prometheus.CounterVec
	mailboxDepth          *prometheus.GaugeVec
	requestTimeouts       prometheus.Counter
	promisesBroken        prometheus.Counter
	spawnedTotal          *prometheus.CounterVec
	terminatedTotal       *prometheus.CounterVec
	actorsLive            *prometheus.GaugeVec
	schedulerInflight     *prometheus.GaugeVec
	schedulerTaskDuration prometheus.Histogram
	schedulerTasksTotal   *prometheus.CounterVec
}

// NewActorMetrics creates a new Prometheus implementation of ActorMetrics.
func NewActorMetrics(reg prometheus.Registerer) actor.ActorMetrics {
	return newActorMetrics(reg)
}

func newActorMetrics(reg prometheus.Registerer) *actorMetrics {
	m := &actorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actr_actor_message_duration_seconds",
			Help:    "Message handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_messages_total",
			Help: "Total number of messages processed",
		}, []string{"message_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_panics_total",
			Help: "Total number of handler panics",
		}, []string{"message_type"}),

		bouncedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_messages_bounced_total",
			Help: "Total number of requests bounced back to their sender",
		}, []string{"reason"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actr_actor_mailbox_depth",
			Help: "Current mailbox queue depth",
		}, []string{"actor"}),

		requestTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actr_actor_request_timeouts_total",
			Help: "Total number of request timeouts delivered",
		}),

		promisesBroken: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actr_actor_promises_broken_total",
			Help: "Total number of promises abandoned without a response",
		}),

		spawnedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_spawned_total",
			Help: "Total number of actors spawned",
		}, []string{"kind"}),

		terminatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_terminated_total",
			Help: "Total number of actors terminated",
		}, []string{"kind"}),

		actorsLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actr_actor_live",
			Help: "Number of actors currently alive",
		}, []string{"kind"}),

		schedulerInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actr_actor_scheduler_inflight",
			Help: "Number of concurrent scheduled tasks",
		}, []string{"pool"}),

		schedulerTaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actr_actor_scheduler_task_duration_seconds",
			Help:    "Scheduled task duration in seconds",
			Buckets: defaultBuckets,
		}),

		schedulerTasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actr_actor_scheduler_tasks_total",
			Help: "Total number of scheduled tasks completed",
		}, []string{"success"}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.panicTotal,
		m.bouncedTotal,
		m.mailboxDepth,
		m.requestTimeouts,
		m.promisesBroken,
		m.spawnedTotal,
		m.terminatedTotal,
		m.actorsLive,
		m.schedulerInflight,
		m.schedulerTaskDuration,
		m.schedulerTasksTotal,
	)

	return m
}

func (m *actorMetrics) MessageDuration(msgType string) metrics.Timer {
	return metrics.NewTimer(m.messageDuration.WithLabelValues(msgType))
}

func (m *actorMetrics) MessageProcessed(msgType string, success bool) {
	m.messagesTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *actorMetrics) MessagePanic(msgType string) {
	m.panicTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) MessageBounced(reason string) {
	m.bouncedTotal.WithLabelValues(reason).Inc()
}

func (m *actorMetrics) MailboxDepth(name string, depth int) {
	m.mailboxDepth.WithLabelValues(name).Set(float64(depth))
}

func (m *actorMetrics) MailboxRemoved(name string) {
	m.mailboxDepth.DeleteLabelValues(name)
}

func (m *actorMetrics) RequestTimedOut() { m.requestTimeouts.Inc() }

func (m *actorMetrics) PromiseBroken() { m.promisesBroken.Inc() }

func (m *actorMetrics) ActorSpawned(kind string) {
	m.spawnedTotal.WithLabelValues(kind).Inc()
	m.actorsLive.WithLabelValues(kind).Inc()
}

func (m *actorMetrics) ActorTerminated(kind string) {
	m.terminatedTotal.WithLabelValues(kind).Inc()
	m.actorsLive.WithLabelValues(kind).Dec()
}

func (m *actorMetrics) SchedulerInflight(pool string, count int) {
	m.schedulerInflight.WithLabelValues(pool).Set(float64(count))
}

func (m *actorMetrics) SchedulerTaskDuration() metrics.Timer {
	return metrics.NewTimer(m.schedulerTaskDuration)
}

func (m *actorMetrics) SchedulerTaskCompleted(success bool) {
	m.schedulerTasksTotal.WithLabelValues(boolToStr(success)).Inc()
}

var _ actor.ActorMetrics = (*actorMetrics)(nil)
