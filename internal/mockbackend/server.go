// Package mockbackend is a development stand-in for the trading backend. It
// serves the dashboard state, the square-off command, the logout link and a
// Socket.IO channel pushing simulated market updates.
package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	StatePath     = "/api/get-dashboard-state"
	SquareOffPath = "/api/square-off"
	DashboardPath = "/dashboard"
	LogoutPath    = "/logout"
	SocketPath    = "/socket.io/"
)

// Config tunes the simulation.
type Config struct {
	// SessionCookie, when set, is required on every request under
	// SessionCookieName.
	SessionCookieName string
	SessionCookie     string

	UpdateEvery  time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	// TradeEvery enters or exits a trade every n updates; 0 disables it.
	TradeEvery int
	Seed       int64
	StartLTP   float64
}

func (c *Config) applyDefaults() {
	if c.SessionCookieName == "" {
		c.SessionCookieName = "session"
	}
	if c.UpdateEvery <= 0 {
		c.UpdateEvery = 2 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 20 * time.Second
	}
	if c.StartLTP <= 0 {
		c.StartLTP = 24500
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Server is the mock backend.
type Server struct {
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	market  *market
	updates int
	clients map[*socketClient]struct{}
}

// New builds a server. A nil logger discards logs.
func New(cfg Config, log *zap.Logger) *Server {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		market:   newMarket(cfg.Seed, cfg.StartLTP),
		clients:  make(map[*socketClient]struct{}),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get(StatePath, s.handleState)
		r.Post(SquareOffPath, s.handleSquareOff)
		r.Get(DashboardPath, s.handleDashboard)
	})
	r.Get(LogoutPath, s.handleLogout)
	r.Get(SocketPath, s.handleSocket)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// Run advances the simulation and broadcasts until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.UpdateEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances the market one step, broadcasting the new state and any
// trade entered or exited on this step.
func (s *Server) Tick() {
	s.mu.Lock()
	s.market.step()
	s.updates++
	var note string
	if n := s.cfg.TradeEvery; n > 0 && s.updates%n == 0 {
		if side := s.market.exit(); side != "" {
			note = fmt.Sprintf("Exited %s: Target/Stop hit", side)
		} else if side := s.market.enter(uuid.NewString()); side != "" {
			note = fmt.Sprintf("%s Trade Entered!", side)
		}
	}
	state := s.market.snapshot()
	s.mu.Unlock()

	if note != "" {
		s.log.Info("trade notification", zap.String("message", note))
		s.broadcast("trade_notification", map[string]string{"message": note})
	}
	s.broadcast("market_update", state)
}

func (s *Server) state() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market.snapshot()
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.SessionCookie == "" {
		return true
	}
	c, err := r.Cookie(s.cfg.SessionCookieName)
	return err == nil && c.Value == s.cfg.SessionCookie
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "login required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSquareOff(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	side := s.market.exit()
	state := s.market.snapshot()
	s.mu.Unlock()

	if side == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No active trade to square off."})
		return
	}
	s.log.Info("square-off", zap.String("side", side), zap.String("request_id", middleware.GetReqID(r.Context())))
	s.broadcast("trade_notification", map[string]string{"message": fmt.Sprintf("Exited %s (Manual Square-Off)", side)})
	s.broadcast("market_update", state)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Square-off order placed for %s position.", side)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: s.cfg.SessionCookieName, Value: "", Path: "/", MaxAge: -1})
	s.log.Info("logout", zap.String("remote", r.RemoteAddr))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("logged out"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Algo Dashboard</title></head>
<body>
  <nav>
    <a href="/dashboard">Dashboard</a>
    <a href="/orders">Orders</a>
    <a id="logout-link" href="/logout">Logout</a>
  </nav>
  <main id="dashboard"></main>
</body>
</html>`
