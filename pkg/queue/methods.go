package queue

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"rbqbroker/pkg/metrics"
	"rbqbroker/pkg/protocol"
)

// ShardedQueue owns a fixed-length set of Shards, the data directory they
// live under, and the counter used to schedule background checkpoints.
// Shard count is immutable after construction.
type ShardedQueue struct {
	shards     []*Shard
	shardCount int
	dataDir    string

	checkpointMu        sync.Mutex
	checkpointCounter    int
	checkpointThreshold  int
	checkpointInFlight    int32 // atomic: 0 or 1

	log *slog.Logger
}

// Open constructs a ShardedQueue with shardCount shards rooted at dataDir,
// running each shard's recovery algorithm in turn. dataDir is created if
// it does not already exist.
func Open(dataDir string, shardCount, walBatchSize, checkpointThreshold int, logger *slog.Logger) (*ShardedQueue, error) {
	if shardCount <= 0 {
		return nil, fmt.Errorf("queue: shard count must be positive, got %d", shardCount)
	}
	if checkpointThreshold <= 0 {
		checkpointThreshold = DefaultCheckpointThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("queue: creating data directory %s: %w", dataDir, err)
	}

	shards := make([]*Shard, shardCount)
	for i := 0; i < shardCount; i++ {
		s, err := newShard(i, dataDir, walBatchSize)
		if err != nil {
			return nil, err
		}
		shards[i] = s
	}

	return &ShardedQueue{
		shards:              shards,
		shardCount:          shardCount,
		dataDir:             dataDir,
		checkpointThreshold: checkpointThreshold,
		log:                 logger,
	}, nil
}

// pickShard selects a shard for msg using its routing key modulo the
// shard count.
func (q *ShardedQueue) pickShard(msg protocol.Message) *Shard {
	return q.shards[msg.ShardKey(q.shardCount)]
}

// ShardFor exposes shard selection for callers that need the Shard a
// message's routing key selects; only msg's first TLV affects the result.
func (q *ShardedQueue) ShardFor(msg protocol.Message) *Shard {
	return q.pickShard(msg)
}

// Push routes msg to its shard, appends it, and advances the checkpoint
// counter by one (per call, not per message — this dilutes the threshold
// for batched workloads, an intentional, documented trade-off rather than
// an oversight).
func (q *ShardedQueue) Push(msg protocol.Message) error {
	shard := q.pickShard(msg)
	if err := shard.Push(msg); err != nil {
		return err
	}
	q.maybeCheckpoint()
	return nil
}

// PushBatch groups msgs by destination shard, appends each group with one
// PushBatch call per shard, and advances the checkpoint counter by one
// total (matching the single-call-per-batch accounting described for
// push_batch, not one increment per shard touched).
func (q *ShardedQueue) PushBatch(msgs []protocol.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byShard := make(map[int][]protocol.Message)
	for _, m := range msgs {
		k := m.ShardKey(q.shardCount)
		byShard[k] = append(byShard[k], m)
	}
	for k, group := range byShard {
		if err := q.shards[k].PushBatch(group); err != nil {
			return err
		}
	}
	q.maybeCheckpoint()
	return nil
}

// Pop pops from the shard that msg's routing key selects. The JobAck
// handler passes the incoming frame itself, whose first TLV is the key.
func (q *ShardedQueue) Pop(msg protocol.Message) (protocol.Message, bool, error) {
	return q.pickShard(msg).Pop()
}

// maybeCheckpoint increments the checkpoint counter and, once it exceeds
// the configured threshold, resets it and launches a background
// checkpoint across every shard. Only one background checkpoint may run
// at a time; if one is already in flight the increment has no further
// effect this window.
func (q *ShardedQueue) maybeCheckpoint() {
	q.checkpointMu.Lock()
	q.checkpointCounter++
	due := q.checkpointCounter > q.checkpointThreshold
	if due {
		q.checkpointCounter = 0
	}
	q.checkpointMu.Unlock()

	if !due {
		return
	}
	if !atomic.CompareAndSwapInt32(&q.checkpointInFlight, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&q.checkpointInFlight, 0)
		q.checkpointAll()
	}()
}

func (q *ShardedQueue) checkpointAll() {
	for _, s := range q.shards {
		if err := s.checkpoint(); err != nil {
			metrics.CheckpointFailedTotal.Inc()
			q.log.Error("checkpoint failed", "shard", s.id, "error", err)
			continue
		}
		metrics.CheckpointTotal.Inc()
	}
}

// ForceCheckpoint runs the checkpoint routine for every shard in turn on
// the caller's goroutine. Unlike the background path it does not consult
// or reset the scheduling counter's in-flight guard.
func (q *ShardedQueue) ForceCheckpoint() error {
	for _, s := range q.shards {
		if err := s.checkpoint(); err != nil {
			metrics.CheckpointFailedTotal.Inc()
			return err
		}
		metrics.CheckpointTotal.Inc()
	}
	return nil
}

// ShardCount returns the immutable number of shards.
func (q *ShardedQueue) ShardCount() int { return q.shardCount }

// Depths returns the current message count of every shard, in shard-id
// order, for metrics/admin reporting.
func (q *ShardedQueue) Depths() []int {
	out := make([]int, len(q.shards))
	for i, s := range q.shards {
		out[i] = s.Len()
	}
	return out
}

// Close releases every shard's WAL file handle.
func (q *ShardedQueue) Close() error {
	var firstErr error
	for _, s := range q.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	globalMu sync.Mutex
	global   *ShardedQueue
)

// InitGlobal installs q as the process-wide singleton ShardedQueue. It is
// a programmer error to call this more than once; doing so returns
// ErrQueueInitializedTwice rather than silently replacing the existing
// queue, since the core contract treats "global queue initialised twice"
// as a startup precondition violation that should abort the process.
func InitGlobal(q *ShardedQueue) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return ErrQueueInitializedTwice
	}
	global = q
	return nil
}

// Global returns the process-wide singleton ShardedQueue installed by
// InitGlobal, or ErrNoGlobalQueue if none has been installed yet.
func Global() (*ShardedQueue, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil, ErrNoGlobalQueue
	}
	return global, nil
}
