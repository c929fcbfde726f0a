package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbqbroker/pkg/protocol"
)

func TestShardedQueueRoutingDeterminism_Law4(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, 8, DefaultWalBatchSize, DefaultCheckpointThreshold, nil)
	require.NoError(t, err)
	defer q.Close()

	a := msgWithKey("same-key")
	b := msgWithKey("same-key", protocol.Tlv{Tag: 9, Value: []byte("different body")})
	require.Equal(t, q.pickShard(a), q.pickShard(b))
}

func TestForceCheckpointDurability_Law6(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, 2, DefaultWalBatchSize, DefaultCheckpointThreshold, nil)
	require.NoError(t, err)

	msgs := []protocol.Message{msgWithKey("a"), msgWithKey("b"), msgWithKey("c"), msgWithKey("d")}
	for _, m := range msgs {
		require.NoError(t, q.Push(m))
	}
	preDepths := q.Depths()

	require.NoError(t, q.ForceCheckpoint())
	for _, s := range q.shards {
		require.Equal(t, int64(0), walSize(t, s))
	}
	require.NoError(t, q.Close())

	q2, err := Open(dir, 2, DefaultWalBatchSize, DefaultCheckpointThreshold, nil)
	require.NoError(t, err)
	defer q2.Close()
	require.Equal(t, preDepths, q2.Depths())
}

func walSize(t *testing.T, s *Shard) int64 {
	t.Helper()
	info, err := s.wal.f.Stat()
	require.NoError(t, err)
	return info.Size()
}

func TestGlobalQueueInitTwiceFails(t *testing.T) {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()

	dir1 := t.TempDir()
	q1, err := Open(dir1, 1, DefaultWalBatchSize, DefaultCheckpointThreshold, nil)
	require.NoError(t, err)
	defer q1.Close()
	require.NoError(t, InitGlobal(q1))

	dir2 := t.TempDir()
	q2, err := Open(dir2, 1, DefaultWalBatchSize, DefaultCheckpointThreshold, nil)
	require.NoError(t, err)
	defer q2.Close()
	require.ErrorIs(t, InitGlobal(q2), ErrQueueInitializedTwice)

	got, err := Global()
	require.NoError(t, err)
	require.Same(t, q1, got)
}
