package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rednet.ai/internal/observerproto"
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
)

// Source is the slice of the engine the observer needs.
type Source interface {
	RunID() string
	TickRateHz() int
	CurrentTick() uint64
}

type client struct {
	sub  observerproto.SubscribeMsg
	out  chan []byte
	mu   sync.Mutex
	gone bool
}

func (c *client) setSub(sub observerproto.SubscribeMsg) {
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
}

func (c *client) subscription() observerproto.SubscribeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

// Server streams tick entries to websocket observers. It is an engine sink.
type Server struct {
	src        Source
	log        *log.Logger
	maxClients int

	// AllowRemote disables the loopback check (tests, trusted deployments).
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
	dropped atomic.Uint64
}

func NewServer(src Source, logger *log.Logger, maxClients int) *Server {
	if maxClients <= 0 {
		maxClients = 16
	}
	return &Server{
		src:        src,
		log:        logger,
		maxClients: maxClients,
		clients:    map[string]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Clients returns the number of subscribed observers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped counts TICK messages replaced before a slow client read them.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// WriteTick fans e out to every client. It never blocks.
func (s *Server) WriteTick(e engine.TickEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		b, err := json.Marshal(observerproto.NewTickMsg(e, c.subscription()))
		if err != nil {
			return err
		}
		if sendLatest(c.out, b) {
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			RunID:           s.src.RunID(),
			Tick:            s.src.CurrentTick(),
			RunParams: observerproto.RunParams{
				TickRateHz: s.src.TickRateHz(),
				Channels:   grid.Channels,
				ChunkSize:  grid.ChunkSize,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		c := &client{sub: sub, out: make(chan []byte, 8)}
		if !s.join(sid, c) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer s.leave(sid)
		if s.log != nil {
			s.log.Printf("observer %s joined from %s", sid, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			c.setSub(sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) join(sid string, c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.maxClients {
		return false
	}
	s.clients[sid] = c
	return true
}

func (s *Server) leave(sid string) {
	s.mu.Lock()
	delete(s.clients, sid)
	s.mu.Unlock()
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

// sendLatest keeps only the newest frames; it reports whether one was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
