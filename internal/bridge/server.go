// Package bridge hosts the websocket transport for thin/browser clients,
// negotiating per-connection codec (text frame = JSON, binary frame =
// msgpack) on the first inbound message, per SPEC_FULL.md §4.2/§6. Grounded
// on the teacher's internal/gateway/server.go (gorilla/websocket.Upgrader,
// mux-based HTTP server, ctx-driven graceful shutdown via http.Server.Shutdown).
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/polyglotgw/internal/transport"
)

// handshakeRateLimit bounds how often a single remote address may attempt
// the websocket upgrade, anti-hammering the AwaitingHandshake stage
// (SPEC_FULL.md §6 rate limiting).
const handshakeRateLimit = rate.Limit(1) // 1/sec, burst 5

// Server hosts the /ws endpoint and a /health liveness probe.
type Server struct {
	addr       string
	upgrader   websocket.Upgrader
	deps       *transport.Deps
	httpServer *http.Server

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer builds a bridge server bound to addr ("host:port").
func NewServer(addr string, deps *transport.Deps) *Server {
	return &Server{
		addr:     addr,
		deps:     deps,
		limiters: make(map[string]*rate.Limiter),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) allowHandshake(addr string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[addr]
	if !ok {
		l = rate.NewLimiter(handshakeRateLimit, 5)
		s.limiters[addr] = l
	}
	return l.Allow()
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	slog.Info("bridge starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bridge: serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.allowHandshake(host) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("bridge: websocket upgrade failed", "error", err)
		return
	}

	conn := newWSConn(ws)
	sess := transport.NewSession(conn)
	transport.RegisterHandlers(sess, s.deps)

	if err := sess.Run(r.Context()); err != nil {
		slog.Debug("bridge: session ended", "error", err)
	}
}
