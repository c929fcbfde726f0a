// Package server implements the TCP listener and per-connection handler:
// the outermost data-plane components that bind a socket, accept
// connections indefinitely, and submit each accepted stream to the
// worker pool.
package server

import (
	"fmt"
	"log/slog"
	"net"

	"rbqbroker/pkg/metrics"
	"rbqbroker/pkg/pool"
	"rbqbroker/pkg/queue"
)

// Server binds a TCP listener and feeds accepted connections into a
// worker pool, which dispatches each one to handleConn.
type Server struct {
	addr          string
	queue         *queue.ShardedQueue
	pool          *pool.Pool
	log           *slog.Logger
	maxFrameBytes int

	ln                net.Listener
	shutdownRequested bool
}

// New constructs a Server bound to addr. The pool itself is constructed
// internally so the per-connection handler always has access to q and
// the logger. maxFrameBytes sizes the per-connection read buffer
// (pkg/config's QueueConfig.MaxFrameBytes); a value <= 0 falls back to
// defaultReadBufSize.
func New(addr string, q *queue.ShardedQueue, poolSize, maxQueueSize int, maxFrameBytes int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFrameBytes <= 0 {
		maxFrameBytes = defaultReadBufSize
	}
	s := &Server{addr: addr, queue: q, log: logger, maxFrameBytes: maxFrameBytes}
	s.pool = pool.New(poolSize, maxQueueSize, s.handleConn, logger)
	return s
}

// ListenAndServe binds the listener and accepts connections until the
// listener is closed (by Shutdown or an external Close), submitting each
// accepted stream to the pool. A submission rejection is logged and the
// connection is dropped, per §7's SubmissionRejected/SubmissionFull
// policy.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.Info("listening", "addr", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		metrics.ConnectionsAcceptedTotal.Inc()

		if err := s.pool.Submit(conn); err != nil {
			reason := "full"
			if err == pool.ErrRejected {
				reason = "rejected"
			}
			metrics.SubmissionRejectedTotal.WithLabelValues(reason).Inc()
			s.log.Error("dropping accepted connection", "reason", reason)
			conn.Close()
		}
	}
}

func (s *Server) isShuttingDown() bool {
	return s.shutdownRequested
}

// Shutdown stops accepting new connections and gracefully drains the
// worker pool: in-flight handlers finish their current iteration before
// their worker exits (connections are not interrupted mid-read).
func (s *Server) Shutdown() error {
	s.shutdownRequested = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.pool.Shutdown()
	return err
}
