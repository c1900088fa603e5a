package oracle

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub gerencia os clientes conectados e faz broadcast para todos eles.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*clientConn
	log      *zap.Logger

	OnConnect    func() // métricas
	OnDisconnect func()
	OnSent       func()
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

// ServeHTTP aceita a conexão e a mantém registrada até o cliente desconectar
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &clientConn{id: uuid.NewString(), conn: conn}
	h.add(c)

	go func() {
		defer func() {
			h.remove(c.id)
			_ = conn.Close()
		}()
		for {
			// Lê e descarta mensagens do cliente para manter o socket limpo
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) add(c *clientConn) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Clients retorna o número de conexões ativas
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast envia v (JSON) para todos os clientes conectados
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*clientConn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", c.id), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		if h.OnSent != nil {
			h.OnSent()
		}
	}
}
