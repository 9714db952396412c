package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mivchk/splus-bot/backend/bot"
	"github.com/mivchk/splus-bot/backend/model"
)

// Frame types exchanged with a chat gateway.
const (
	frameText    = "text"
	frameButton  = "button"
	frameCommand = "command"

	frameSend   = "send"
	frameEdit   = "edit"
	frameDelete = "delete"
	frameReply  = "reply"
	frameInfo   = "info"
	frameError  = "error"
)

const (
	eventTimeout = 30 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

var (
	errNoRoute    = errors.New("gateway: no connection for user")
	errBufferFull = errors.New("gateway: send buffer full")
	errClosed     = errors.New("gateway: connection closed")
)

// inboundFrame is one user interaction relayed by a gateway.
type inboundFrame struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	Handle    string `json:"handle,omitempty"`
	Text      string `json:"text,omitempty"`
	Data      string `json:"data,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// outboundFrame asks a gateway to change a user's chat.
type outboundFrame struct {
	Type         string         `json:"type"`
	UserID       int64          `json:"user_id,omitempty"`
	MessageID    string         `json:"message_id,omitempty"`
	Text         string         `json:"text,omitempty"`
	Options      []model.Option `json:"options,omitempty"`
	QuickReplies []string       `json:"quick_replies,omitempty"`
	Ref          string         `json:"ref,omitempty"`
}

func (f inboundFrame) event() (bot.Event, error) {
	if f.UserID <= 0 {
		return bot.Event{}, errors.New("user_id is required")
	}
	ev := bot.Event{
		From:      model.Identity{UserID: f.UserID, Handle: f.Handle},
		Text:      f.Text,
		Data:      f.Data,
		MessageID: f.MessageID,
	}
	switch f.Type {
	case frameText:
		ev.Kind = bot.EventText
	case frameButton:
		ev.Kind = bot.EventButton
	case frameCommand:
		ev.Kind = bot.EventCommand
	default:
		return bot.Event{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return ev, nil
}

type eventHandler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// gatewayConn is one authenticated gateway socket.
type gatewayConn struct {
	name string
	conn *websocket.Conn
	send chan outboundFrame
	done chan struct{}
}

func (c *gatewayConn) enqueue(f outboundFrame) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errBufferFull
	}
}

// Gateway accepts websocket connections from chat gateways, turns their
// frames into bot events and routes replies back. It implements
// bot.Transport: a user's messages go to the connection that most recently
// relayed an event from that user.
type Gateway struct {
	secret       []byte
	upgrader     websocket.Upgrader
	log          zerolog.Logger
	eventContext func(context.Context) context.Context

	mu     sync.RWMutex
	conns  map[*gatewayConn]struct{}
	routes map[int64]*gatewayConn

	inflight sync.WaitGroup
}

// NewGateway creates a gateway endpoint. eventContext, when set, decorates
// the context of every inbound event.
func NewGateway(secret []byte, allowedOrigins []string, eventContext func(context.Context) context.Context, log zerolog.Logger) *Gateway {
	if eventContext == nil {
		eventContext = func(ctx context.Context) context.Context { return ctx }
	}
	return &Gateway{
		secret: secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		log:          log.With().Str("component", "gateway").Logger(),
		eventContext: eventContext,
		conns:        make(map[*gatewayConn]struct{}),
		routes:       make(map[int64]*gatewayConn),
	}
}

// Handler serves /ws/gateway, feeding events to h.
func (g *Gateway) Handler(h eventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := gatewayFromRequest(r, g.secret)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Warn().Err(err).Str("gateway", name).Msg("websocket upgrade")
			return
		}

		c := &gatewayConn{
			name: name,
			conn: conn,
			send: make(chan outboundFrame, sendBuffer),
			done: make(chan struct{}),
		}
		g.register(c)
		g.log.Info().Str("gateway", name).Str("remote", r.RemoteAddr).Msg("gateway connected")

		_ = c.enqueue(outboundFrame{Type: frameInfo, Text: "connected"})

		go g.writer(c)
		g.reader(context.WithoutCancel(r.Context()), c, h)
	}
}

func (g *Gateway) register(c *gatewayConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c] = struct{}{}
}

func (g *Gateway) unregister(c *gatewayConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c)
	for id, rc := range g.routes {
		if rc == c {
			delete(g.routes, id)
		}
	}
}

func (g *Gateway) route(userID int64, c *gatewayConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[userID] = c
}

func (g *Gateway) reader(base context.Context, c *gatewayConn, h eventHandler) {
	defer func() {
		g.unregister(c)
		close(c.done)
		c.conn.Close()
		g.log.Info().Str("gateway", c.name).Msg("gateway disconnected")
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn().Err(err).Str("gateway", c.name).Msg("read frame")
			}
			return
		}

		var f inboundFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			_ = c.enqueue(outboundFrame{Type: frameError, Text: "invalid frame"})
			continue
		}
		ev, err := f.event()
		if err != nil {
			_ = c.enqueue(outboundFrame{Type: frameError, UserID: f.UserID, Text: err.Error(), Ref: f.MessageID})
			continue
		}

		g.route(ev.From.UserID, c)
		g.inflight.Add(1)
		go func() {
			defer g.inflight.Done()
			ctx, cancel := context.WithTimeout(base, eventTimeout)
			defer cancel()
			if err := h.Handle(g.eventContext(ctx), ev); err != nil {
				_ = c.enqueue(outboundFrame{Type: frameError, UserID: ev.From.UserID, Text: errorCode(err), Ref: ev.MessageID})
			}
		}()
	}
}

func (g *Gateway) writer(c *gatewayConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Wait blocks until every event already read has been handled.
func (g *Gateway) Wait() {
	g.inflight.Wait()
}

// CloseAll closes every gateway socket.
func (g *Gateway) CloseAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
	}
}

func errorCode(err error) string {
	var be *bot.Error
	if errors.As(err, &be) {
		return string(be.Code)
	}
	return "INTERNAL"
}

func (g *Gateway) deliver(f outboundFrame) error {
	g.mu.RLock()
	c, ok := g.routes[f.UserID]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %d", errNoRoute, f.UserID)
	}
	return c.enqueue(f)
}

func (g *Gateway) Send(_ context.Context, userID int64, text string, options []model.Option) (string, error) {
	id := uuid.NewString()
	return id, g.deliver(outboundFrame{Type: frameSend, UserID: userID, MessageID: id, Text: text, Options: options})
}

func (g *Gateway) Edit(_ context.Context, userID int64, messageID, text string, options []model.Option) error {
	return g.deliver(outboundFrame{Type: frameEdit, UserID: userID, MessageID: messageID, Text: text, Options: options})
}

func (g *Gateway) Delete(_ context.Context, userID int64, messageID string) error {
	return g.deliver(outboundFrame{Type: frameDelete, UserID: userID, MessageID: messageID})
}

func (g *Gateway) SendWithReplies(_ context.Context, userID int64, text string, replies []string) (string, error) {
	id := uuid.NewString()
	return id, g.deliver(outboundFrame{Type: frameReply, UserID: userID, MessageID: id, Text: text, QuickReplies: replies})
}
