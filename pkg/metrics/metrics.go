// Package metrics exposes the broker's Prometheus instrumentation: push
// and pop counters, per-shard queue depth, checkpoint activity, and
// submission rejections, registered against the default registry so a
// single promhttp.Handler in the admin surface exposes all of it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PushTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_push_total",
		Help: "Total number of messages successfully pushed.",
	})

	PopTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_pop_total",
		Help: "Total number of messages successfully popped.",
	})

	PopEmptyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_pop_empty_total",
		Help: "Total number of pop attempts against an empty shard.",
	})

	ShardDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rbq_shard_depth",
		Help: "Current number of resident messages, by shard.",
	}, []string{"shard"})

	CheckpointTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_checkpoint_total",
		Help: "Total number of shard checkpoint routines run.",
	})

	CheckpointFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_checkpoint_failed_total",
		Help: "Total number of shard checkpoint routines that returned an error.",
	})

	SubmissionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbq_submission_rejected_total",
		Help: "Total number of connections rejected by the worker pool, by reason.",
	}, []string{"reason"})

	ConnectionsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_connections_accepted_total",
		Help: "Total number of TCP connections accepted by the listener.",
	})

	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbq_decode_errors_total",
		Help: "Total number of frames rejected by the protocol decoder.",
	})
)
