package queue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"rbqbroker/pkg/protocol"
)

// Shard is one independent FIFO partition: an in-memory queue of Messages,
// a condition variable coupled to the FIFO's non-empty transition (kept
// for a future blocking-pull API; the client-visible Pop never waits on
// it), and a WAL writer bound to this shard's on-disk files.
//
// Lock ordering: when both mutexes are needed in the same logical
// operation, acquire walMu before fifoMu (Push does this). No operation in
// this package holds both mutexes nested in the other order except the
// checkpoint routine, which is safe because no other path holds walMu
// while requesting fifoMu.
type Shard struct {
	id  int
	dir string

	fifoMu sync.Mutex
	cond   *sync.Cond
	fifo   []protocol.Message

	walMu sync.Mutex
	wal   *walWriter
}

func shardBase(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf(shardFilePattern, id))
}

// newShard constructs a Shard, running the recovery algorithm described in
// the durability engine's contract: replay the snapshot (if present)
// strictly before replaying the WAL, then open the WAL for further
// appends.
func newShard(id int, dir string, walBatchSize int) (*Shard, error) {
	s := &Shard{id: id, dir: dir}
	s.cond = sync.NewCond(&s.fifoMu)

	base := shardBase(dir, id)
	snapPath := base + snapSuffix
	walPath := base + walSuffix

	if _, err := os.Stat(snapPath); err == nil {
		msgs, err := loadSnapshot(snapPath)
		if err != nil {
			return nil, fmt.Errorf("queue: shard %d: loading snapshot: %w", id, err)
		}
		s.fifo = msgs
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("queue: shard %d: stat snapshot: %w", id, err)
	}

	if err := s.replayWal(walPath); err != nil {
		return nil, fmt.Errorf("queue: shard %d: replaying wal: %w", id, err)
	}

	w, err := openWalWriter(walPath, walBatchSize)
	if err != nil {
		return nil, err
	}
	s.wal = w
	return s, nil
}

// loadSnapshot reads `[u32 LE length][length bytes]` records in file order
// and decodes each into a Message, stopping cleanly at truncation (a short
// trailing record is treated as end-of-file, not an error). A record that
// reads in full but fails to decode is skipped, not treated as truncation —
// replay continues with the next record, matching the original
// implementation's resolution of this case.
func loadSnapshot(path string) ([]protocol.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []protocol.Message
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		data := make([]byte, length)
		if _, err := io.ReadFull(f, data); err != nil {
			break
		}
		m, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// replayWal reads `[op_byte][u32 LE length][length bytes]` records; PUSH
// appends the decoded Message to the FIFO tail, POP removes the FIFO head
// (a pop against an empty FIFO is a silent no-op, corresponding to a crash
// between the two unlock windows of the live pop() path). Replay stops
// cleanly on truncation or an unrecognised op byte. A PUSH record that
// reads in full but fails to decode is skipped rather than treated as
// truncation — the rest of the log is still replayed, matching the
// original implementation's resolution of this case.
func (s *Shard) replayWal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var hdr [5]byte
	for {
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return err
		}
		op := WalOp(hdr[0])
		length := binary.LittleEndian.Uint32(hdr[1:5])

		switch op {
		case OpPush:
			data := make([]byte, length)
			if _, err := io.ReadFull(f, data); err != nil {
				return nil // truncated trailing record; stop cleanly
			}
			m, err := protocol.Decode(data)
			if err != nil {
				continue
			}
			s.fifo = append(s.fifo, m)
		case OpPop:
			if len(s.fifo) > 0 {
				s.fifo = s.fifo[1:]
			}
		default:
			return nil // unknown op: stop cleanly
		}
	}
	return nil
}

// Push encodes msg, appends a PUSH WAL record, then enqueues msg at the
// FIFO tail and signals one waiter. The two critical sections (WAL, then
// FIFO) are sequential, not nested. A WAL append error does not stop the
// in-memory enqueue; it is returned after msg has been enqueued.
func (s *Shard) Push(msg protocol.Message) error {
	encoded := msg.Encode()

	s.walMu.Lock()
	err := s.wal.Append(OpPush, encoded)
	s.walMu.Unlock()

	s.fifoMu.Lock()
	s.fifo = append(s.fifo, msg)
	s.cond.Signal()
	s.fifoMu.Unlock()
	return err
}

// PushBatch appends a PUSH record for every message and flushes once at
// the end, then extends the FIFO in one lock hold and broadcasts to all
// waiters.
func (s *Shard) PushBatch(msgs []protocol.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	encoded := make([][]byte, len(msgs))
	for i, m := range msgs {
		encoded[i] = m.Encode()
	}

	s.walMu.Lock()
	err := s.wal.AppendBatch(OpPush, encoded)
	s.walMu.Unlock()
	if err != nil {
		return err
	}

	s.fifoMu.Lock()
	s.fifo = append(s.fifo, msgs...)
	s.cond.Broadcast()
	s.fifoMu.Unlock()
	return nil
}

// Pop removes the FIFO head, if present, and reports whether a message was
// removed. If one was removed, a POP WAL record (no payload) is appended
// after the FIFO mutex is released.
func (s *Shard) Pop() (protocol.Message, bool, error) {
	s.fifoMu.Lock()
	var msg protocol.Message
	popped := false
	if len(s.fifo) > 0 {
		msg = s.fifo[0]
		s.fifo = s.fifo[1:]
		popped = true
	}
	s.fifoMu.Unlock()

	if !popped {
		return protocol.Message{}, false, nil
	}

	s.walMu.Lock()
	err := s.wal.Append(OpPop, nil)
	s.walMu.Unlock()
	if err != nil {
		return msg, true, err
	}
	return msg, true, nil
}

// PopBatch removes up to max messages from the FIFO head under a single
// FIFO lock hold, then appends one POP WAL record per removed message.
// Emitting one record per message (rather than per call) preserves the
// 1-to-1 PUSH/POP WAL parity that crash-recovery replay depends on.
func (s *Shard) PopBatch(max int) ([]protocol.Message, error) {
	if max <= 0 {
		return nil, nil
	}

	s.fifoMu.Lock()
	n := max
	if n > len(s.fifo) {
		n = len(s.fifo)
	}
	popped := append([]protocol.Message(nil), s.fifo[:n]...)
	s.fifo = s.fifo[n:]
	s.fifoMu.Unlock()

	if len(popped) == 0 {
		return nil, nil
	}

	s.walMu.Lock()
	for range popped {
		if err := s.wal.Append(OpPop, nil); err != nil {
			s.walMu.Unlock()
			return popped, err
		}
	}
	s.walMu.Unlock()
	return popped, nil
}

// TryPop is a non-blocking pop identical to Pop minus the WAL record. It is
// an explicit low-level hook: it does not cross the durability boundary
// and must not be exposed to external clients.
func (s *Shard) TryPop() (protocol.Message, bool) {
	s.fifoMu.Lock()
	defer s.fifoMu.Unlock()
	if len(s.fifo) == 0 {
		return protocol.Message{}, false
	}
	msg := s.fifo[0]
	s.fifo = s.fifo[1:]
	return msg, true
}

// Len reports the current number of messages resident in the FIFO.
func (s *Shard) Len() int {
	s.fifoMu.Lock()
	defer s.fifoMu.Unlock()
	return len(s.fifo)
}

// Close releases the shard's WAL file handle.
func (s *Shard) Close() error {
	return s.wal.Close()
}
