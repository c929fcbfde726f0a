package queue

import (
	"encoding/binary"
	"fmt"
	"os"

	"rbqbroker/pkg/protocol"
)

// checkpoint performs the atomic checkpoint sequence for this shard:
// quiesce the FIFO, write every resident message as a snapshot record to a
// temp file, fsync and rename it into place, then truncate the WAL. The
// FIFO mutex is held for the whole routine so no push/pop can interleave
// with the snapshot write or the WAL truncate; this acquires fifoMu then
// walMu, the reverse of Push's ordering, but is deadlock-free because no
// other path holds walMu while requesting fifoMu.
func (s *Shard) checkpoint() error {
	s.fifoMu.Lock()
	defer s.fifoMu.Unlock()

	base := shardBase(s.dir, s.id)
	tmpPath := base + snapTmpSuffix
	finalPath := base + snapSuffix

	if err := writeSnapshot(tmpPath, s.fifo); err != nil {
		return fmt.Errorf("queue: shard %d: writing snapshot: %w", s.id, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("queue: shard %d: renaming snapshot into place: %w", s.id, err)
	}

	s.walMu.Lock()
	err := s.wal.Truncate()
	s.walMu.Unlock()
	if err != nil {
		return fmt.Errorf("queue: shard %d: truncating wal after checkpoint: %w", s.id, err)
	}
	return nil
}

// writeSnapshot writes every message as a `[u32 LE length][length bytes]`
// record to a temp file, fsyncs, and closes it. The caller is responsible
// for the atomic rename into its final name.
func writeSnapshot(tmpPath string, msgs []protocol.Message) error {
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	var lenBuf [4]byte
	for _, m := range msgs {
		enc := m.Encode()
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(enc); err != nil {
			f.Close()
			return err
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
