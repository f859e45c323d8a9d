package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ngocvo/retailbot/internal/config"
	"github.com/ngocvo/retailbot/internal/observability"
	"github.com/ngocvo/retailbot/internal/pipeline"
	"github.com/ngocvo/retailbot/internal/protocol"
	"github.com/ngocvo/retailbot/internal/session"
)

// Server is the websocket front-end: one connection, one session, one
// goroutine running the pipeline.
type Server struct {
	cfg         config.Config
	sessions    *session.Manager
	pipeline    *pipeline.Pipeline
	metrics     *observability.Metrics
	catalogMode string
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, pl *pipeline.Pipeline, metrics *observability.Metrics, catalogMode string) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		pipeline:    pl,
		metrics:     metrics,
		catalogMode: catalogMode,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// (the Flutter app) omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"catalog_mode":    s.catalogMode,
		"active_sessions": s.sessions.ActiveCount(),
	})
}

// handleWS owns the whole connection lifecycle: session create on upgrade,
// sequential pipeline dispatch in the read loop, a single writer goroutine
// for outbound events, session end on disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := s.sessions.Create()
	log.Printf("session %s: client connected", sess.ID)
	s.metrics.SessionEvents.WithLabelValues("connected").Inc()
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	defer func() {
		if err := s.sessions.End(sess.ID); err == nil {
			s.metrics.SessionEvents.WithLabelValues("disconnected").Inc()
		}
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		log.Printf("session %s: client disconnected", sess.ID)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if ev, ok := eventOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(ev)).Inc()
				}
			}
		}
	}()

	send := func(events ...any) bool {
		for _, ev := range events {
			select {
			case <-ctx.Done():
				return false
			case outbound <- ev:
			}
		}
		return true
	}

	const readIdleBudget = 120 * time.Second
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readIdleBudget))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleBudget))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("session %s: connection error: %v", sess.ID, err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readIdleBudget))
		if err := s.sessions.Touch(sess.ID); err != nil {
			// The janitor expired this session while the socket stayed
			// open; stop dispatching and close.
			log.Printf("session %s: expired, closing connection", sess.ID)
			break
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
			if !send(protocol.NewError(clientErrorMessage(err))) {
				break readLoop
			}
			continue
		}
		if ev, ok := eventOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(ev)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.StartListening:
			// Acknowledge first, then run the capture cycle inline: one
			// pipeline step per session at a time, per the ordering
			// contract.
			if !send(protocol.NewListening()) {
				break readLoop
			}
			if !send(s.pipeline.HandleSpeech(ctx, sess)...) {
				break readLoop
			}
		case protocol.TextMessage:
			if !send(s.pipeline.Handle(ctx, sess, msg.Text, false)...) {
				break readLoop
			}
		case protocol.StopListening:
			// Capture cancellation is not implemented; the ack keeps the
			// client's UI state machine moving.
			if !send(protocol.NewStopListeningAck()) {
				break readLoop
			}
		}
	}

	cancel()
	<-writerDone
}

// clientErrorMessage words the outbound error event for a parse failure.
func clientErrorMessage(err error) string {
	var invalid *protocol.InvalidJSONError
	switch {
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.Is(err, protocol.ErrUnsupportedEvent):
		return "Unknown event"
	case errors.Is(err, protocol.ErrNoText):
		return "No text provided"
	default:
		return err.Error()
	}
}

func eventOf(v any) (protocol.Event, bool) {
	switch m := v.(type) {
	case protocol.StartListening:
		return m.Event, true
	case protocol.TextMessage:
		return m.Event, true
	case protocol.StopListening:
		return m.Event, true
	case protocol.Listening:
		return m.Event, true
	case protocol.StopListeningAck:
		return m.Event, true
	case protocol.ChatMessage:
		return m.Event, true
	case protocol.ErrorEvent:
		return m.Event, true
	default:
		return "", false
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
