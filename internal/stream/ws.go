package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/reservly/pulsed/internal/model"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// wsObserver adapts one WebSocket connection to the hub's Observer interface.
type wsObserver struct {
	id   string
	conn *websocket.Conn
}

func (c *wsObserver) ID() string { return c.id }

func (c *wsObserver) Send(ctx context.Context, p model.StreamPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsObserver) Close(reason string) {
	payload, _ := json.Marshal(model.StreamPayload{
		Type:   "disconnect",
		SentAt: time.Now().UTC(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = c.conn.Write(ctx, websocket.MessageText, payload)
	cancel()
	c.conn.Close(websocket.StatusPolicyViolation, reason)
}

// clientMessage is what a WebSocket client sends to manage its subscription.
type clientMessage struct {
	Type        string             `json:"type"` // "subscribe" or "unsubscribe"
	Filter      model.StreamFilter `json:"filter"`
	IntervalSec int                `json:"interval_sec"`
}

// WSHandler upgrades HTTP requests to WebSocket observers on the hub.
type WSHandler struct {
	hub *Hub
	log *zap.Logger
}

// NewWSHandler creates the WebSocket endpoint handler.
func NewWSHandler(hub *Hub, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// ServeHTTP accepts the connection and subscribes it with the default filter
// (everything) until the client sends its own subscribe message.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // loopback service, origin not enforced
	})
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}

	obs := &wsObserver{id: uuid.NewString(), conn: conn}
	h.hub.Subscribe(obs, model.StreamFilter{}, 0)

	ctx := r.Context()
	go h.pingLoop(ctx, obs)
	h.readPump(ctx, obs)
}

func (h *WSHandler) pingLoop(ctx context.Context, obs *wsObserver) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := obs.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readPump(ctx context.Context, obs *wsObserver) {
	defer func() {
		h.hub.Unsubscribe(obs.id)
		obs.conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := obs.conn.Read(readCtx)
		cancel()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			// Replaces the previous subscription for this connection.
			h.hub.Subscribe(obs, msg.Filter, time.Duration(msg.IntervalSec)*time.Second)
		case "unsubscribe":
			h.hub.Unsubscribe(obs.id)
		}
	}
}
