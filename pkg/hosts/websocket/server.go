// Package websocket serves the command engine to JSON WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/hosts"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/utils"
)

// Request is a command line sent by a client. ID is echoed in the reply.
type Request struct {
	ID   string `json:"id,omitempty"`
	Line string `json:"line"`
}

// Response carries the rendered outcome of a request, or an announcement
// when Type is "announce".
type Response struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	OK    bool        `json:"ok"`
	Lines []ReplyLine `json:"lines,omitempty"`
}

type ReplyLine struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

const (
	TypeReply    = "reply"
	TypeAnnounce = "announce"
	TypeError    = "error"

	writeWait = 10 * time.Second
)

var ErrNotRunning = errors.New("websocket server not running")

type client struct {
	id   string
	user *hosts.User
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *client) send(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type Server struct {
	engine   *engine.Engine
	cfg      config.WebSocketConfig
	users    map[string]config.UserConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	server  *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(e *engine.Engine, cfg config.WebSocketConfig) *Server {
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Token != "" {
			users[u.Token] = u
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine: e,
		cfg:    cfg,
		users:  users,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the upgrade endpoint, for mounting on an existing mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWS)
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("websocket server already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	path := s.cfg.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.Handle(path, s.Handler())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoCF("websocket", "WebSocket server listening", map[string]any{
		"host": s.cfg.Host,
		"port": s.cfg.Port,
		"path": path,
	})

	srv := s.server
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("websocket", "Server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	logger.InfoC("websocket", "Stopping WebSocket server")
	s.cancel()

	s.mu.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorCF("websocket", "Server shutdown error", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Announce sends text to every connected client.
func (s *Server) Announce(text string) {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	msg := Response{Type: TypeAnnounce, OK: true, Lines: []ReplyLine{{OK: true, Text: text}}}
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			logger.WarnCF("websocket", "Announcement not delivered", map[string]any{
				"client_id": c.id,
				"error":     err.Error(),
			})
		}
	}
}

// authenticate maps the request token to a commander. Tokens come from the
// "token" query parameter or a bearer Authorization header.
func (s *Server) authenticate(r *http.Request, clientID string) (*hosts.User, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if u, ok := s.users[token]; ok && token != "" {
		name := u.Name
		if name == "" {
			name = clientID
		}
		return hosts.NewUser(name, u.Operator, u.Permissions...), true
	}
	if s.cfg.AllowAnonymous {
		return hosts.NewUser("guest-"+clientID[:8], false), true
	}
	return nil, false
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := uuid.New().String()
	user, ok := s.authenticate(r, clientID)
	if !ok {
		logger.WarnCF("websocket", "Rejected unauthenticated client", map[string]any{
			"remote_addr": r.RemoteAddr,
		})
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("websocket", "Upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := &client{id: clientID, user: user, conn: conn}
	s.mu.Lock()
	s.clients[clientID] = c
	ctx := s.ctx
	s.mu.Unlock()

	logger.InfoCF("websocket", "New WebSocket connection", map[string]any{
		"client_id":   clientID,
		"commander":   user.Name(),
		"remote_addr": r.RemoteAddr,
	})

	go s.readPump(ctx, c)
}

func (s *Server) readPump(ctx context.Context, c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.conn.Close()

		logger.InfoCF("websocket", "Client disconnected", map[string]any{"client_id": c.id})
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.ErrorCF("websocket", "Read error", map[string]any{
					"client_id": c.id,
					"error":     err.Error(),
				})
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			logger.WarnCF("websocket", "Invalid JSON message", map[string]any{
				"client_id": c.id,
				"error":     err.Error(),
			})
			_ = c.send(Response{Type: TypeError, Lines: []ReplyLine{{Text: "invalid request: " + err.Error()}}})
			continue
		}

		logger.DebugCF("websocket", "Received command", map[string]any{
			"client_id": c.id,
			"line":      utils.Truncate(req.Line, 200),
		})

		hosts.Execute(ctx, s.engine, c.user, req.Line, func(lines []hosts.Line) {
			if err := c.send(reply(req.ID, lines)); err != nil {
				logger.WarnCF("websocket", "Failed to send reply", map[string]any{
					"client_id": c.id,
					"error":     err.Error(),
				})
			}
		})
	}
}

func reply(id string, lines []hosts.Line) Response {
	resp := Response{Type: TypeReply, ID: id, OK: true}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, ReplyLine{OK: l.OK, Text: l.Text})
		if !l.OK {
			resp.OK = false
		}
	}
	return resp
}
