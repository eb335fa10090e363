// Package server runs the accept loop, per-connection command reader,
// and the replica flush ticker.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"kvredis/internal/config"
	"kvredis/internal/engine"
	"kvredis/internal/logging"
	"kvredis/internal/protocol"
)

// Server accepts client connections and dispatches their commands
// through an Engine.
type Server struct {
	cfg *config.Config
	eng *engine.Engine

	mu          sync.Mutex
	listener    net.Listener
	isShutdown  bool
	connections sync.Map // connID -> net.Conn
	connIDSeq   atomic.Int64
	activeConns atomic.Int64
	wg          sync.WaitGroup
}

// New returns a Server bound to cfg/eng but not yet listening.
func New(cfg *config.Config, eng *engine.Engine) *Server {
	return &Server{cfg: cfg, eng: eng}
}

// Run listens on the configured port and serves connections until ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = listener
	logging.Infof("listening on %s", addr)

	go s.flushLoop(ctx)
	go s.acceptLoop(ctx)

	<-ctx.Done()
	s.Shutdown()
	return nil
}

func (s *Server) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.eng.Repl.FlushPending()
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.isShutdown
			s.mu.Unlock()
			if down {
				return
			}
			logging.Errorf("accept: %v", err)
			continue
		}

		id := s.connIDSeq.Add(1)
		s.connections.Store(id, conn)
		s.activeConns.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.activeConns.Add(-1)
			defer s.connections.Delete(id)
			defer conn.Close()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	fr := protocol.NewFrameReader(conn)
	c := &engine.ClientConn{Addr: conn.RemoteAddr().String()}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, _, err := fr.ReadFrame()
		if err != nil {
			return
		}
		args, err := protocol.ArrayStrings(frame)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}

		reply, _ := s.eng.Dispatch(ctx, c, args)

		if reply.Type == protocol.TypeNoReply {
			continue
		}
		if _, err := conn.Write(protocol.Serialize(reply)); err != nil {
			return
		}

		if c.IsReplica && c.Replica == nil {
			c.Replica = s.eng.Repl.Replicas.Add(conn)
			if _, err := conn.Write(s.eng.PSyncSnapshotFrame(c)); err != nil {
				return
			}
		}
	}
}

// Shutdown closes the listener and every open connection, then waits
// (with a bound) for in-flight handlers to return.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.connections.Range(func(_, v interface{}) bool {
		if conn, ok := v.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.Warnf("shutdown timed out waiting for connections to close")
	}
}
