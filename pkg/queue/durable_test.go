package queue

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"rbqbroker/pkg/protocol"
)

func TestWalReplayAfterPush_S5(t *testing.T) {
	dir := t.TempDir()
	s, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)

	m1 := msgWithKey("m1")
	m2 := msgWithKey("m2")
	require.NoError(t, s.Push(m1))
	require.NoError(t, s.Push(m2))
	require.NoError(t, s.wal.Flush())
	require.NoError(t, s.Close())

	s2, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)
	defer s2.Close()

	got1, ok, err := s2.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m1.Tlvs, got1.Tlvs)

	got2, ok, err := s2.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m2.Tlvs, got2.Tlvs)
}

func TestWalReplayWithPop_S6(t *testing.T) {
	dir := t.TempDir()
	s, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)

	m1 := msgWithKey("m1")
	m2 := msgWithKey("m2")
	require.NoError(t, s.Push(m1))
	require.NoError(t, s.Push(m2))
	_, ok, err := s.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.wal.Flush())
	require.NoError(t, s.Close())

	s2, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m2.Tlvs, got.Tlvs)

	_, ok, err = s2.Pop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPopBatchWalParityAcrossRestart(t *testing.T) {
	// Regression test for the fixed §9 defect: pop_batch must emit one POP
	// WAL record per drained message, or those messages reappear after a
	// crash/restart.
	dir := t.TempDir()
	s, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)

	msgs := []protocol.Message{msgWithKey("a"), msgWithKey("b"), msgWithKey("c")}
	require.NoError(t, s.PushBatch(msgs))

	popped, err := s.PopBatch(2)
	require.NoError(t, err)
	require.Len(t, popped, 2)
	require.NoError(t, s.wal.Flush())
	require.NoError(t, s.Close())

	s2, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, 1, s2.Len())
	got, ok, err := s2.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msgs[2].Tlvs, got.Tlvs)
}

func TestFlushDoesNotSeekToStart(t *testing.T) {
	// Regression test for the fixed §9 defect: flush must not reset the
	// file cursor, since the handle is opened O_APPEND and a stray seek
	// to 0 served no purpose.
	dir := t.TempDir()
	s, err := newShard(0, dir, DefaultWalBatchSize)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Push(msgWithKey("first")))
	require.NoError(t, s.wal.Flush())
	off, err := s.wal.f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Greater(t, off, int64(0))
}
