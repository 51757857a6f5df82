package wsstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/neurostream/component"
	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/realtime"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	closeTimeout = 5 * time.Second
)

// Envelope wraps every outgoing message with type discrimination so a
// single socket can carry results, focus records and status reports.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Payload   json.RawMessage `json:"payload"`
}

// client is one connected dashboard. The write mutex serializes
// writes; gorilla connections panic on concurrent writers.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

// Server broadcasts decision records to WebSocket clients.
type Server struct {
	addr   string
	path   string
	logger *slog.Logger

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	mu        sync.Mutex
	running   bool
	startTime time.Time
	shutdown  chan struct{}
	wg        *sync.WaitGroup

	sent   atomic.Int64
	errs   atomic.Int64
	joined atomic.Int64
}

var _ component.Component = (*Server)(nil)
var _ realtime.Sink = (*Server)(nil)

// New builds a server from the output config. Empty fields fall back
// to the package defaults.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = config.Default().Outputs.WebSocket.Addr
	}
	path := cfg.Path
	if path == "" {
		path = config.Default().Outputs.WebSocket.Path
	}
	return &Server{
		addr:   addr,
		path:   path,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards connect from file:// pages and local dev
			// servers, so origin is not checked.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Meta returns component metadata.
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "websocket-stream",
		Type:        "output",
		Description: fmt.Sprintf("WebSocket result stream on %s%s", s.addr, s.path),
		Version:     "1.0.0",
	}
}

// Health reports whether the listener is up.
func (s *Server) Health() component.HealthStatus {
	s.mu.Lock()
	running := s.running
	started := s.startTime
	s.mu.Unlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errs.Load()),
		Uptime:     time.Since(started),
	}
}

// Initialize validates the configuration.
func (s *Server) Initialize() error {
	if s.path == "" || s.path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "wsstream", "Initialize",
			fmt.Sprintf("endpoint path %q must start with /", s.path))
	}
	if _, _, err := net.SplitHostPort(s.addr); err != nil {
		return errors.WrapInvalid(err, "wsstream", "Initialize", "parse listen address")
	}
	return nil
}

// Start binds the listener and begins serving. The bound address is
// available from Addr() afterwards, which matters when the configured
// port is 0.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "wsstream", "Start", "check running state")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "wsstream", "Start", "context already cancelled")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapFatal(err, "wsstream", "Start", "bind listener")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)

	s.listener = ln
	s.server = &http.Server{Handler: mux}
	s.shutdown = make(chan struct{})
	s.wg = &sync.WaitGroup{}
	s.running = true
	s.startTime = time.Now()

	s.wg.Add(2)
	go s.serve()
	go s.maintainClients()

	s.logger.Info("websocket stream started", "addr", ln.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound listen address, or the configured one before
// Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down and closes all client connections.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	server := s.server
	wg := s.wg
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown error", "error", err)
	}

	s.closeAllClients()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("goroutines still running after %v", timeout),
			"wsstream", "Stop", "await shutdown")
	}

	s.mu.Lock()
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	s.logger.Info("websocket stream stopped",
		"messages_sent", s.sent.Load(),
		"clients_served", s.joined.Load(),
		"errors", s.errs.Load())
	return nil
}

// Name identifies the sink in logs and metrics labels.
func (s *Server) Name() string { return "websocket" }

// WriteResult broadcasts one attention record.
func (s *Server) WriteResult(r realtime.Result) error {
	return s.broadcast("result", r)
}

// WriteFocus broadcasts one focus record.
func (s *Server) WriteFocus(r realtime.FocusResult) error {
	return s.broadcast("focus", r)
}

// WriteStatus broadcasts one status report.
func (s *Server) WriteStatus(st realtime.Status) error {
	return s.broadcast("status", st)
}

// Close satisfies the sink contract.
func (s *Server) Close() error {
	return s.Stop(closeTimeout)
}

// ClientCount reports how many dashboards are connected.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) serve() {
	defer s.wg.Done()

	err := s.server.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		s.errs.Add(1)
		s.logger.Error("websocket server failed", "error", err)
	}
}

// handleUpgrade turns an HTTP request into a streaming client.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.errs.Add(1)
		return
	}

	c := &client{conn: conn}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.joined.Add(1)

	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	s.wg.Add(1)
	go s.readLoop(c)
}

// readLoop consumes (and discards) client frames so pings, pongs and
// close handshakes are processed.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c, "read closed")

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client, reason string) {
	c.once.Do(func() {
		c.closed.Store(true)

		s.clientsMu.Lock()
		delete(s.clients, c)
		count := len(s.clients)
		s.clientsMu.Unlock()

		_ = c.conn.Close()
		s.logger.Debug("client removed", "reason", reason, "clients", count)
	})
}

func (s *Server) closeAllClients() {
	s.clientsMu.RLock()
	snapshot := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		snapshot = append(snapshot, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range snapshot {
		s.removeClient(c, "server stopping")
	}
}

// broadcast sends one envelope to every connected client. A write
// error drops that client; the broadcast itself never fails once the
// envelope marshals, so a dead dashboard cannot stall the decode loop.
func (s *Server) broadcast(msgType string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		s.errs.Add(1)
		return errors.WrapInvalid(err, "wsstream", "broadcast", "marshal payload")
	}
	data, err := json.Marshal(Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		s.errs.Add(1)
		return errors.WrapInvalid(err, "wsstream", "broadcast", "marshal envelope")
	}

	s.clientsMu.RLock()
	snapshot := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if !c.closed.Load() {
			snapshot = append(snapshot, c)
		}
	}
	s.clientsMu.RUnlock()

	for _, c := range snapshot {
		if err := s.send(c, data); err != nil {
			s.errs.Add(1)
			s.removeClient(c, "write failed")
			continue
		}
		s.sent.Add(1)
	}
	return nil
}

func (s *Server) send(c *client, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// maintainClients pings connected clients so half-open connections
// are detected between broadcasts.
func (s *Server) maintainClients() {
	defer s.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.pingClients()
		}
	}
}

func (s *Server) pingClients() {
	s.clientsMu.RLock()
	snapshot := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if !c.closed.Load() {
			snapshot = append(snapshot, c)
		}
	}
	s.clientsMu.RUnlock()

	for _, c := range snapshot {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			s.errs.Add(1)
			s.removeClient(c, "ping failed")
		}
	}
}
