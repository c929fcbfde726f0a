package queue

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// walWriter is a single-producer append-only log writer bound to one
// shard's WAL file. Every operation is serialised by mu; callers (the
// owning Shard) must still hold their own WAL mutex discipline as
// documented in Shard, since walWriter itself makes no ordering promises
// across Append/Flush/Truncate beyond its own mutex.
//
// Record framing: [op_byte][u32 little-endian length][length bytes].
type walWriter struct {
	mu            sync.Mutex
	f             *os.File
	path          string
	batchSize     int
	sinceLastFlush int
}

// openWalWriter opens (creating if absent) the WAL file at path for
// appending.
func openWalWriter(path string, batchSize int) (*walWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultWalBatchSize
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("queue: opening wal %s: %w", path, err)
	}
	return &walWriter{f: f, path: path, batchSize: batchSize}, nil
}

// Append writes one WAL record: op byte, 4-byte little-endian length
// (0 when data is nil), then data. It flushes automatically once the
// number of unflushed records exceeds the configured batch threshold.
func (w *walWriter) Append(op WalOp, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(op, data)
}

func (w *walWriter) appendLocked(op WalOp, data []byte) error {
	var hdr [5]byte
	hdr[0] = byte(op)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(data)))
	if _, err := w.f.Write(hdr[:]); err != nil {
		return fmt.Errorf("queue: wal append op to %s: %w", w.path, err)
	}
	if len(data) > 0 {
		if _, err := w.f.Write(data); err != nil {
			return fmt.Errorf("queue: wal append data to %s: %w", w.path, err)
		}
	}
	w.sinceLastFlush++
	if w.sinceLastFlush > w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// AppendBatch writes one record per (op, data) pair and always flushes
// once at the end, regardless of the batch threshold. Used by push_batch,
// which flushes unconditionally after writing all of its PUSH records.
func (w *walWriter) AppendBatch(op WalOp, dataList [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, data := range dataList {
		if err := w.appendLocked(op, data); err != nil {
			return err
		}
	}
	return w.flushLocked()
}

// Flush forces the OS to persist everything written so far (an fsync-class
// operation) and resets the unflushed-record counter. No truncation
// occurs. Unlike the sources this package is grounded on, Flush does NOT
// seek back to offset 0 after syncing — that seek was a defect (the file
// is opened O_APPEND, so the next write always lands at EOF regardless of
// the file's cursor; re-seeking to 0 served no purpose and was a latent
// bug waiting for the open mode to change).
func (w *walWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *walWriter) flushLocked() error {
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("queue: wal fsync %s: %w", w.path, err)
	}
	w.sinceLastFlush = 0
	return nil
}

// Truncate sets the WAL file length to 0 and resets the unflushed-record
// counter. Used only by the checkpoint routine, after a snapshot has
// captured the shard's full in-memory state.
func (w *walWriter) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("queue: wal truncate %s: %w", w.path, err)
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return fmt.Errorf("queue: wal seek after truncate %s: %w", w.path, err)
	}
	w.sinceLastFlush = 0
	return nil
}

// Close closes the underlying file handle.
func (w *walWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
