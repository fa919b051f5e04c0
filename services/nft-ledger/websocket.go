package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
)

type streamMessage struct {
	Type         string     `json:"type"`
	Message      string     `json:"message,omitempty"`
	Event        *nft.Event `json:"event,omitempty"`
	LastSequence uint64     `json:"last_sequence,omitempty"`
	Timestamp    string     `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// eventHub fans ledger events out to websocket clients. A client whose
// buffer is full is disconnected rather than allowed to stall the ledger.
type eventHub struct {
	clientsMutex sync.RWMutex
	clients      map[*wsClient]bool
	upgrader     websocket.Upgrader
	logger       *logrus.Logger
}

func newEventHub(logger *logrus.Logger) *eventHub {
	return &eventHub{
		clients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *eventHub) serve(w http.ResponseWriter, r *http.Request, lastSequence uint64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.enqueue(client, streamMessage{
		Type:         "welcome",
		Message:      "Connected to NFT ledger events",
		LastSequence: lastSequence,
		Timestamp:    time.Now().Format(time.RFC3339),
	})

	h.clientsMutex.Lock()
	h.clients[client] = true
	h.clientsMutex.Unlock()
	h.logger.Infof("🔗 New WebSocket client connected for events")

	go h.writePump(client)
	h.readPump(client)
}

func (h *eventHub) readPump(client *wsClient) {
	defer h.remove(client)

	for {
		var msg map[string]interface{}
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Errorf("❌ WebSocket error: %v", err)
			}
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			h.enqueue(client, streamMessage{
				Type:      "pong",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	}
}

// writePump is the only goroutine writing to client.conn.
func (h *eventHub) writePump(client *wsClient) {
	defer client.conn.Close()

	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("❌ Failed to send event to WebSocket client: %v", err)
			h.remove(client)
			return
		}
	}
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *eventHub) broadcast(event nft.Event) {
	payload, err := json.Marshal(streamMessage{
		Type:      "event",
		Event:     &event,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.WithError(err).Error("❌ Failed to encode event")
		return
	}

	var slow []*wsClient
	h.clientsMutex.RLock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMutex.RUnlock()

	for _, client := range slow {
		h.logger.Warn("⚠️ Dropping WebSocket client that is not keeping up")
		h.remove(client)
	}
}

// enqueue queues a control message. It may run before the client is
// registered, and is a no-op once the client has been removed.
func (h *eventHub) enqueue(client *wsClient, msg streamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	if _, registered := h.clients[client]; !registered && msg.Type != "welcome" {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// remove unregisters client and closes its send channel exactly once.
func (h *eventHub) remove(client *wsClient) {
	h.clientsMutex.Lock()
	_, registered := h.clients[client]
	delete(h.clients, client)
	h.clientsMutex.Unlock()

	if registered {
		close(client.send)
		h.logger.Infof("🔌 WebSocket client disconnected")
	}
}

func (h *eventHub) clientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

func (h *eventHub) closeAll() {
	h.clientsMutex.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]bool)
	h.clientsMutex.Unlock()

	for client := range clients {
		close(client.send)
	}
}
