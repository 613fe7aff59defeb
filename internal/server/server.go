// Package server exposes the device state to the local network: a JSON
// snapshot at /status and a WebSocket stream of changes at /ws. It is
// read-only; relay commands only arrive over the message bus.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
	"ampsupply-controller/internal/scheduler"
)

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub          *Hub
	bus          *core.EventBus
	events       core.Subscriber
	getSchedules func() map[cron.EntryID]scheduler.Entry

	mu     sync.RWMutex
	latest core.Snapshot

	httpServer     *http.Server
	allowedOrigins []string
	upgrader       websocket.Upgrader
	log            *logging.Logger
}

// NewServer creates a new server instance. It subscribes to the bus right
// away so the boot state is not missed.
func NewServer(bus *core.EventBus, getSchedules func() map[cron.EntryID]scheduler.Entry, port string, allowedOrigins []string, log *logging.Logger) *Server {
	s := &Server{
		bus:            bus,
		events:         bus.Subscribe(core.StateChangedEvent, core.RebootEvent),
		getSchedules:   getSchedules,
		allowedOrigins: allowedOrigins,
		log:            log.With("component", "server"),
	}
	s.Hub = NewHub(s.log)

	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run follows the event bus and forwards state changes to WebSocket clients
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.Hub.Run(ctx)
	defer s.bus.Unsubscribe(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			switch event.Type {
			case core.StateChangedEvent:
				snap, ok := event.Payload.(core.Snapshot)
				if !ok {
					continue
				}
				s.mu.Lock()
				s.latest = snap
				s.mu.Unlock()
				s.Hub.Broadcast(NewMessage("device_state", snap))
			case core.RebootEvent:
				s.Hub.Broadcast(NewMessage("reboot", event.Payload))
			}
		}
	}
}

// ListenAndServe serves until Shutdown. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("status server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Latest returns the most recent state snapshot seen on the bus.
func (s *Server) Latest() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	s.log.Warn("websocket connection blocked", "origin", origin)
	return false
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Latest()); err != nil {
		s.log.Warn("status encode failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "error", err)
		return
	}

	_ = conn.WriteJSON(NewMessage("device_state", s.Latest()))
	if s.getSchedules != nil {
		_ = conn.WriteJSON(NewMessage("schedule_list", s.getSchedules()))
	}

	if !s.Hub.add(conn) {
		conn.Close()
		return
	}
	defer s.Hub.remove(conn)

	// Clients never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
