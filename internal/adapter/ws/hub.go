// Package ws implements the WebSocket connection gateway. Clients connect
// scoped to an event and are grouped into per-event channels; broadcasts
// target one channel or all connections.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/backplane"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// joinRequest is the payload clients send to join an additional channel.
type joinRequest struct {
	EventID string `json:"eventId"`
}

// conn wraps a single WebSocket connection and the channels it joined.
type conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	channels map[string]struct{}
}

// Hub manages all active WebSocket connections. Connection state is held
// only in memory; a restart drops every client, which then reconnects and
// refetches.
type Hub struct {
	instanceID     string
	originPatterns []string
	pollInterval   time.Duration

	mu       sync.RWMutex
	conns    map[*conn]struct{}
	channels map[string]map[*conn]struct{}

	bp           backplane.Backplane
	bpUnsub      func()
	bpActive     bool
	bridgeActive bool
}

// NewHub creates a new gateway hub. pollInterval is the fallback polling
// interval advertised to clients in the ready payload.
func NewHub(pollInterval time.Duration, originPatterns []string) *Hub {
	return &Hub{
		instanceID:     uuid.New().String(),
		originPatterns: originPatterns,
		pollInterval:   pollInterval,
		conns:          make(map[*conn]struct{}),
		channels:       make(map[string]map[*conn]struct{}),
	}
}

// AttachBackplane connects the hub to a fan-out backplane so broadcasts
// reach clients on other instances. Returns whether attachment succeeded;
// failure leaves the hub in single-instance mode and is never fatal.
func (h *Hub) AttachBackplane(ctx context.Context, bp backplane.Backplane) bool {
	if bp == nil {
		return false
	}
	unsub, err := bp.Subscribe(ctx, h.onBackplaneMessage)
	if err != nil {
		slog.Warn("backplane attach failed, continuing single-instance", "error", err)
		return false
	}

	h.mu.Lock()
	h.bp = bp
	h.bpUnsub = unsub
	h.bpActive = true
	h.mu.Unlock()

	slog.Info("backplane attached", "instance", h.instanceID)
	return true
}

// DetachBackplane unsubscribes from the backplane, if attached.
func (h *Hub) DetachBackplane() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bpUnsub != nil {
		h.bpUnsub()
	}
	h.bp = nil
	h.bpUnsub = nil
	h.bpActive = false
}

// SetBridgeActive records whether the change bridge is live; the flag is
// advertised to clients in the ready payload.
func (h *Hub) SetBridgeActive(active bool) {
	h.mu.Lock()
	h.bridgeActive = active
	h.mu.Unlock()
}

// BackplaneActive reports whether a backplane is attached.
func (h *Hub) BackplaneActive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bpActive
}

// HandleWS upgrades the request to a WebSocket connection and blocks
// until the client disconnects. The event id comes from the "event_id"
// query parameter; a missing id is rejected with a realtime:error event
// before the connection is closed.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 1 && h.originPatterns[0] == "*" {
		opts = &websocket.AcceptOptions{InsecureSkipVerify: true}
	}

	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		h.writeEvent(r.Context(), ws, realtime.EventError, realtime.ErrorPayload{
			Message: "event_id is required",
		})
		_ = ws.Close(websocket.StatusPolicyViolation, "missing event_id")
		return
	}

	// The connection owns its context: net/http cancels r.Context() as
	// soon as this handler returns, which would kill the read loop and
	// drop the client right after the ready event.
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, cancel: cancel, channels: make(map[string]struct{})}

	h.join(c, realtime.EventChannel(eventID))
	h.sendReady(ctx, c, eventID)

	slog.Info("websocket connected", "remote", r.RemoteAddr, "event_id", eventID)

	h.readLoop(ctx, c)
}

// readLoop consumes client messages until disconnect. The only recognized
// client message is "join", which subscribes the connection to another
// event channel.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	defer func() {
		h.remove(c)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "join" {
			continue
		}
		var req joinRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || req.EventID == "" {
			h.writeEvent(ctx, c.ws, realtime.EventError, realtime.ErrorPayload{
				Message: "join requires an eventId",
			})
			continue
		}
		h.join(c, realtime.EventChannel(req.EventID))
		h.sendReady(ctx, c, req.EventID)
	}
}

// Broadcast sends a typed event to all clients joined to the channel and
// replicates it through the backplane when one is attached.
func (h *Hub) Broadcast(ctx context.Context, channel, eventType string, payload any) {
	data, ok := h.marshal(eventType, payload)
	if !ok {
		return
	}
	h.deliverLocal(ctx, channel, false, data)
	h.publishBackplane(ctx, backplane.Message{
		Origin:  h.instanceID,
		Channel: channel,
		Data:    data,
	})
}

// BroadcastGlobal sends a typed event to every connected client and
// replicates it through the backplane when one is attached.
func (h *Hub) BroadcastGlobal(ctx context.Context, eventType string, payload any) {
	data, ok := h.marshal(eventType, payload)
	if !ok {
		return
	}
	h.deliverLocal(ctx, "", true, data)
	h.publishBackplane(ctx, backplane.Message{
		Origin: h.instanceID,
		Global: true,
		Data:   data,
	})
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ChannelCount returns the number of connections joined to a channel.
func (h *Hub) ChannelCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) marshal(eventType string, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return nil, false
	}
	data, err := json.Marshal(Message{Type: eventType, Payload: body})
	if err != nil {
		slog.Error("marshal ws envelope", "type", eventType, "error", err)
		return nil, false
	}
	return data, true
}

// deliverLocal writes pre-marshalled data to this instance's connections.
func (h *Hub) deliverLocal(ctx context.Context, channel string, global bool, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets map[*conn]struct{}
	if global {
		targets = h.conns
	} else {
		targets = h.channels[channel]
	}

	for c := range targets {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.remove(c)
		}
	}
}

func (h *Hub) publishBackplane(ctx context.Context, msg backplane.Message) {
	h.mu.RLock()
	bp := h.bp
	h.mu.RUnlock()
	if bp == nil {
		return
	}
	if err := bp.Publish(ctx, msg); err != nil {
		slog.Warn("backplane publish failed", "channel", msg.Channel, "error", err)
	}
}

// onBackplaneMessage delivers a replicated broadcast from another instance
// to local connections only, so messages never loop.
func (h *Hub) onBackplaneMessage(ctx context.Context, msg backplane.Message) {
	if msg.Origin == h.instanceID {
		return
	}
	h.deliverLocal(ctx, msg.Channel, msg.Global, msg.Data)
}

func (h *Hub) sendReady(ctx context.Context, c *conn, eventID string) {
	h.mu.RLock()
	ready := realtime.ReadyPayload{
		ResourceID:      eventID,
		BackplaneActive: h.bpActive,
		BridgeActive:    h.bridgeActive,
		Fallback: realtime.Fallback{
			Polling:    true,
			IntervalMS: int(h.pollInterval.Milliseconds()),
		},
	}
	h.mu.RUnlock()
	h.writeEvent(ctx, c.ws, realtime.EventReady, ready)
}

func (h *Hub) writeEvent(ctx context.Context, ws *websocket.Conn, eventType string, payload any) {
	data, ok := h.marshal(eventType, payload)
	if !ok {
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "type", eventType, "error", err)
	}
}

func (h *Hub) join(c *conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c] = struct{}{}
	c.channels[channel] = struct{}{}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*conn]struct{})
	}
	h.channels[channel][c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	c.cancel()
	delete(h.conns, c)
	for channel := range c.channels {
		delete(h.channels[channel], c)
		if len(h.channels[channel]) == 0 {
			delete(h.channels, channel)
		}
	}
	slog.Info("websocket disconnected")
}
