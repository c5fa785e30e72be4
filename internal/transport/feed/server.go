// Package feed streams chunk lifecycle events to websocket clients as JSON.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/terrastream/internal/world"
)

const (
	// DefaultSendBuffer is how many events a slow client may lag behind
	// before new events are dropped for it.
	DefaultSendBuffer = 256

	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Source publishes streaming events. *world.Manager implements it.
type Source interface {
	Subscribe(fn func(world.Event)) (unsubscribe func())
}

// Message is the JSON frame sent for every event.
type Message struct {
	Type    world.EventType `json:"type"`
	X       int             `json:"x"`
	Y       int             `json:"y"`
	Visible bool            `json:"visible"`
	Tick    uint64          `json:"tick"`
}

func newMessage(e world.Event) Message {
	return Message{Type: e.Type, X: e.Coord.X, Y: e.Coord.Y, Visible: e.Visible, Tick: e.Tick}
}

// Server upgrades GET /feed and forwards every event to the client.
type Server struct {
	source     Source
	sendBuffer int
	upgrader   websocket.Upgrader

	clients atomic.Int64
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewServer creates a feed over source. sendBuffer < 1 means DefaultSendBuffer.
func NewServer(source Source, sendBuffer int) *Server {
	if sendBuffer < 1 {
		sendBuffer = DefaultSendBuffer
	}
	return &Server{
		source:     source,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the mux serving /feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.WSHandler())
	return mux
}

// WSHandler serves one websocket client until it disconnects.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.Debug("feed upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()

		// The callback runs on the streaming goroutine and must not block.
		out := make(chan world.Event, s.sendBuffer)
		unsubscribe := s.source.Subscribe(func(e world.Event) {
			select {
			case out <- e:
			default:
				s.dropped.Add(1)
			}
		})
		defer unsubscribe()

		s.clients.Add(1)
		defer s.clients.Add(-1)
		slog.Info("feed client connected", "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader: only detects the client going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
					time.Now().Add(time.Second))
				slog.Info("feed client disconnected", "remote", r.RemoteAddr)
				return
			case e := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(newMessage(e)); err != nil {
					slog.Debug("feed write failed", "remote", r.RemoteAddr, "err", err)
					return
				}
				s.sent.Add(1)
			}
		}
	}
}

// Run serves the feed on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Hijacked websocket handlers outlive Shutdown; tie them to ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("feed listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down feed: %w", err)
		}
		slog.Info("feed stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving feed on %s: %w", addr, err)
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int { return int(s.clients.Load()) }

// Sent returns the number of frames written.
func (s *Server) Sent() uint64 { return s.sent.Load() }

// Dropped returns the number of events discarded for slow clients.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }
