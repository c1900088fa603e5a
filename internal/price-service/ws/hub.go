package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// ClientMsg é a mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	Source string `json:"source"` // requerido em subscribe/unsubscribe
}

// client serializa escritas: gorilla/websocket aceita um único escritor por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, b)
}

// Hub gerencia conexões WebSocket e assinaturas por fonte de preço
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// source -> set of clients
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP gerencia o ciclo de vida de uma conexão WebSocket.
// Cada cliente pode assinar várias fontes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.Source]; !ok {
				h.subs[msg.Source] = make(map[*client]struct{})
			}
			h.subs[msg.Source][c] = struct{}{}
			h.mu.Unlock()
			h.ack(c, "subscribed", msg.Source)
		case "unsubscribe":
			h.remove(c, msg.Source)
			h.ack(c, "unsubscribed", msg.Source)
		case "ping":
			h.ack(c, "pong", "")
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for source, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, source)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[source]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, source)
		}
	}
}

func (h *Hub) ack(c *client, typ, source string) {
	b, _ := json.Marshal(map[string]string{"type": typ, "source": source})
	_ = c.write(websocket.TextMessage, b)
}

// Subscribers retorna quantos clientes assinam a fonte
func (h *Hub) Subscribers(source string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[source])
}

// Broadcast envia a atualização para os clientes inscritos na fonte correspondente
func (h *Hub) Broadcast(update events.PriceBroadcast) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[update.Source]))
	for c := range h.subs[update.Source] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range clients {
		_ = c.write(websocket.TextMessage, b)
	}
}
