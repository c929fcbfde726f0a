// Package queue implements the sharded in-memory FIFO queue and its
// per-shard write-ahead log / snapshot durability engine.
//
// On-disk record framing uses little-endian u32 lengths, the opposite
// endianness from the big-endian wire protocol in pkg/protocol. This
// asymmetry is deliberate (§6 of the design notes this package follows):
// the wire format is network-ordered, the on-disk format is host-neutral.
// Do not unify the two without a format-version bump.
package queue

import "errors"

// WalOp identifies the kind of record appended to a shard's WAL.
type WalOp byte

const (
	OpPush WalOp = 0x01
	OpPop  WalOp = 0x02
)

// Default tunables, matching the constants named in the original shard
// implementation (WAL_BATCH_SIZE, CHECKPOINT_THRESHOLD).
const (
	DefaultWalBatchSize        = 100
	DefaultCheckpointThreshold = 100
)

// Shard file naming, rooted at a data directory.
const (
	walSuffix        = ".wal"
	snapSuffix       = ".snap"
	snapTmpSuffix    = ".snap.tmp"
	shardFilePattern = "shard_%d"
)

var (
	// ErrQueueInitializedTwice is a programmer-error precondition violation:
	// the global ShardedQueue singleton may be initialised exactly once.
	ErrQueueInitializedTwice = errors.New("queue: global queue initialised twice")

	// ErrNoGlobalQueue is returned by Global when InitGlobal has not run.
	ErrNoGlobalQueue = errors.New("queue: global queue not initialised")
)
