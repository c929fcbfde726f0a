package server

import (
	"errors"
	"io"
	"net"

	"rbqbroker/pkg/metrics"
	"rbqbroker/pkg/protocol"
)

// defaultReadBufSize is the connection handler's read size when
// QueueConfig.MaxFrameBytes is unset, matching the original contract's
// fixed 4092-byte read. The handler reads up to maxFrameBytes bytes and
// attempts to decode a single Message from whatever arrived; it does not
// implement buffered framing for messages split across packet boundaries.
// TCP gives no guarantee that one read yields exactly one message — this
// is a known, preserved limitation (see the design notes), not an
// oversight.
const defaultReadBufSize = 4092

// handleConn is the per-connection read loop: read up to s.maxFrameBytes
// bytes, decode a single Message, dispatch by msg_type, repeat until the
// peer closes, a read error occurs, or Shutdown has been requested (checked
// before each read, so the current iteration always completes).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, s.maxFrameBytes)

	for {
		if s.isShuttingDown() {
			return
		}
		n, err := conn.Read(buf)
		if n == 0 && err == nil {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			s.log.Error("connection read error", "remote", conn.RemoteAddr(), "error", err)
			return
		}

		msg, decErr := protocol.Decode(buf[:n])
		if decErr != nil {
			metrics.DecodeErrorsTotal.Inc()
			s.log.Warn("failed to decode frame", "remote", conn.RemoteAddr(), "error", decErr)
			reply := controlReply(0, 0, "failed to decode")
			_, _ = conn.Write(reply.Encode())
			continue
		}

		s.dispatch(conn, msg)
	}
}

func (s *Server) dispatch(conn net.Conn, msg protocol.Message) {
	switch msg.Header.MsgType {
	case protocol.JobPush:
		s.handlePush(conn, msg)
	case protocol.JobAck:
		s.handleAck(conn, msg)
	default:
		s.log.Warn("unknown message type", "msg_type", msg.Header.MsgType)
	}
}

func (s *Server) handlePush(conn net.Conn, msg protocol.Message) {
	if err := s.queue.Push(msg); err != nil {
		// WalError policy: logged, not surfaced to the client; the
		// in-memory mutation already proceeded.
		s.log.Error("wal append failed for push", "error", err)
	}
	metrics.PushTotal.Inc()
	reply := controlReply(1, byte(protocol.JobAck), "")
	if _, err := conn.Write(reply.Encode()); err != nil {
		s.log.Error("writing push reply", "error", err)
	}
}

func (s *Server) handleAck(conn net.Conn, msg protocol.Message) {
	popped, ok, err := s.queue.Pop(msg)
	if err != nil {
		s.log.Error("wal append failed for pop", "error", err)
	}
	if ok {
		metrics.PopTotal.Inc()
		if _, err := conn.Write(popped.Encode()); err != nil {
			s.log.Error("writing popped message", "error", err)
		}
		return
	}
	metrics.PopEmptyTotal.Inc()
	reply := controlReply(0, byte(protocol.JobAck), "No message to pop")
	if _, err := conn.Write(reply.Encode()); err != nil {
		s.log.Error("writing empty-pop reply", "error", err)
	}
}

// controlReply builds the Control message shape described in §4.6: status
// flag, dispatched type, and a human-readable detail string, each carried
// as its own TLV in order.
func controlReply(status byte, dispatchedType byte, detail string) protocol.Message {
	return protocol.Message{
		Header: protocol.Header{Version: protocol.Version, MsgType: protocol.Control, Flags: uint16(status)},
		Tlvs: []protocol.Tlv{
			{Tag: 0x01, Value: []byte{status}},
			{Tag: 0x02, Value: []byte{dispatchedType}},
			{Tag: 0x03, Value: []byte(detail)},
		},
	}
}
