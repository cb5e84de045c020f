package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// Hub управляет WebSocket клиентами и рассылает события запусков
// Реализует интерфейс port.RunNotifier
type Hub struct {
	clients map[*Client]bool

	events     chan *dto.RunEventDTO
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Последнее событие, отправляется новому клиенту сразу после подключения
	last *dto.RunEventDTO

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		events:     make(chan *dto.RunEventDTO, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает подписки и рассылку до отмены ctx (запускается в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			last := h.last
			total := len(h.clients)
			h.mu.Unlock()
			if last != nil {
				h.deliver(client, last)
			}
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case event := <-h.events:
			h.mu.Lock()
			h.last = event
			for client := range h.clients {
				h.deliverLocked(client, event)
			}
			h.mu.Unlock()
			h.logger.Debug("Run event broadcasted", "type", event.Type, "state", event.State)
		}
	}
}

// Register регистрирует нового клиента; после остановки hub возвращает false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastRunEvent ставит событие в очередь рассылки (реализация port.RunNotifier)
func (h *Hub) BroadcastRunEvent(event *dto.RunEventDTO) {
	if event == nil {
		return
	}
	select {
	case h.events <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping run event", "run_id", event.RunID, "type", event.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.RunNotifier)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(client *Client, event *dto.RunEventDTO) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(client, event)
}

// deliverLocked отправляет событие клиенту; переполненный клиент отключается
func (h *Hub) deliverLocked(client *Client, event *dto.RunEventDTO) {
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- Message{Type: event.Type, Data: event}:
	default:
		h.drop(client)
		h.logger.Warn("Client channel full, disconnected")
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "state" или "finished"
	Data interface{} `json:"data"`
}
