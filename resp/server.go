package resp

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/chronos-cache/chronos"
)

// Server accepts RESP2 connections and dispatches commands against a
// chronos.Store. Accept loop, per-connection goroutine, and graceful
// Shutdown follow MiraiMindz-watt's shockwave server_combined.go shape,
// adapted from an HTTP connection handler to a RESP2 read-dispatch loop.
type Server struct {
	addr       string
	dispatcher *Dispatcher
	log        chronos.Logger

	listener net.Listener
	wg       sync.WaitGroup
	shutdown atomic.Bool
	done     chan struct{}

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// NewServer builds a Server listening on addr and dispatching against store.
func NewServer(addr string, store *chronos.Store, log chronos.Logger) *Server {
	if log == nil {
		log = chronos.NoOpLogger{}
	}
	return &Server{
		addr:       addr,
		dispatcher: NewDispatcher(store),
		log:        log,
		done:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// WithChangeObserver wires a ChangeObserver (typically a *chronos.TTLController)
// into the server's dispatcher, so SET commands that change a value's
// content feed the TTL volatility estimator.
func (s *Server) WithChangeObserver(o ChangeObserver) *Server {
	s.dispatcher.WithChangeObserver(o)
	return s
}

// WithAccessObserver wires an AccessObserver (typically a
// *chronos.Prefetcher) into the server's dispatcher, so every client GET
// (hit or miss) and SET feeds the predictive prefetcher's transition map.
func (s *Server) WithAccessObserver(o AccessObserver) *Server {
	s.dispatcher.WithAccessObserver(o)
	return s
}

// ListenAndServe binds addr and serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return chronos.NewErrFatal("resp.listen", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l until shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	defer l.Close()

	for {
		if s.shutdown.Load() {
			return nil
		}
		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			continue
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer s.untrackConn(conn)

	reader := bufio.NewReader(conn)
	for {
		if s.shutdown.Load() {
			return
		}
		args, err := ReadCommand(reader)
		if err != nil {
			if err != ErrProtocol {
				return // connection closed or read error: nothing more to write
			}
			WriteError(conn, "ERR Protocol error")
			return
		}
		s.dispatcher.Dispatch(conn, args)
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish their current command, up to ctx's deadline
// (spec §5: background components drain, then cancel).
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		s.closeAllConns()
		return ctx.Err()
	}
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
