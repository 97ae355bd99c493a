package mockbackend

import (
	"net/http"
	"sync"
	"time"


	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const handshakeWait = 10 * time.Second

type socketClient struct {
	sid     string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *socketClient) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(handshakeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// handleSocket serves one Engine.IO v4 websocket session on the default
// namespace.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
		http.Error(w, "only EIO=4 websocket transport is supported", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &socketClient{sid: uuid.NewString(), conn: conn}
	log := s.log.With(zap.String("sid", c.sid))

	open, _ := EncodeOpen(OpenInfo{
		SID:          c.sid,
		Upgrades:     []string{},
		PingInterval: int(s.cfg.PingInterval / time.Millisecond),
		PingTimeout:  int(s.cfg.PingTimeout / time.Millisecond),
		MaxPayload:   1_000_000,
	})
	if err := c.write(open); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, msg, err := conn.ReadMessage()
	if err != nil || len(msg) < 2 || msg[0] != EngineMessage || msg[1] != PacketConnect {
		log.Warn("missing namespace connect", zap.ByteString("frame", msg), zap.Error(err))
		return
	}
	if !s.authorized(r) {
		frame, _ := EncodeConnectError("", "unauthorized", map[string]string{"reason": "session cookie missing or invalid"})
		c.write(frame)
		log.Info("rejected unauthorized socket")
		return
	}
	ack, _ := EncodeConnect("", map[string]string{"sid": uuid.NewString()})
	if err := c.write(ack); err != nil {
		return
	}
	log.Info("socket connected", zap.String("remote", r.RemoteAddr))

	s.addClient(c)
	defer s.removeClient(c)

	if frame, err := EncodeEvent("", "market_update", s.state()); err == nil {
		c.write(frame)
	}

	done := make(chan struct{})
	defer close(done)
	go s.pinger(c, done)

	s.readLoop(c, log)
}

func (s *Server) pinger(c *socketClient, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write([]byte{EnginePing}); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(c *socketClient, log *zap.Logger) {
	deadline := s.cfg.PingInterval + s.cfg.PingTimeout
	for {
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			log.Info("socket closed", zap.Error(err))
			return
		}
		typ, body, err := SplitFrame(msg)
		if err != nil {
			continue
		}
		switch typ {
		case EnginePong:
		case EngineClose:
			log.Info("socket closed by client")
			return
		case EngineMessage:
			p, err := DecodePacket(body)
			if err != nil {
				log.Debug("undecodable packet", zap.ByteString("frame", msg), zap.Error(err))
				continue
			}
			switch p.Type {
			case PacketDisconnect:
				log.Info("socket disconnected by client")
				return
			case PacketEvent:
				name, _, _ := p.Event()
				log.Debug("client event", zap.String("event", name))
			}
		}
	}
}

func (s *Server) addClient(c *socketClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *socketClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// Clients returns the number of connected sockets.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) broadcast(event string, payload any) {
	frame, err := EncodeEvent("", event, payload)
	if err != nil {
		s.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	s.mu.Lock()
	clients := make([]*socketClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(frame); err != nil {
			s.log.Debug("broadcast write failed", zap.String("sid", c.sid), zap.Error(err))
			c.conn.Close()
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}
