// Package stream pushes lifecycle events and prompts to UI clients over
// WebSocket.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tinoosan/gamedock/internal/plugin"
	"github.com/tinoosan/gamedock/internal/prompt"
)

const (
	TypeStatus       = "status"
	TypeStatusHidden = "status-hidden"
	TypePrompt       = "prompt"
	TypePromptClosed = "prompt-closed"
	TypeOpen         = "open"
)

// Message is one frame sent to clients.
type Message struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

type client struct {
	send chan Message
}

// Hub fans messages out to connected clients and implements plugin.Presenter.
type Hub struct {
	prompts *prompt.Registry
	log     *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	status  string
}

var _ plugin.Presenter = (*Hub)(nil)

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{prompts: prompt.NewRegistry(), log: log, clients: make(map[*client]struct{})}
}

func (h *Hub) Show(p *prompt.Prompt) {
	h.prompts.Add(p)
	h.broadcast(TypePrompt, p)
}

func (h *Hub) Message(text string) {
	h.mu.Lock()
	h.status = text
	h.mu.Unlock()
	h.broadcast(TypeStatus, text)
}

func (h *Hub) Hide() {
	h.mu.Lock()
	h.status = ""
	h.mu.Unlock()
	h.broadcast(TypeStatusHidden, nil)
}

func (h *Hub) Open(target string) { h.broadcast(TypeOpen, target) }

func (h *Hub) Publish(kind string, payload any) { h.broadcast(kind, payload) }

// Prompts returns the unanswered prompts.
func (h *Hub) Prompts() []*prompt.Prompt { return h.prompts.Pending() }

// Answer delivers a response to an open prompt.
func (h *Hub) Answer(ctx context.Context, id string, r prompt.Response) error {
	err := h.prompts.Answer(ctx, id, r)
	if err == nil || (!errors.Is(err, prompt.ErrUnknownPrompt) && !errors.Is(err, prompt.ErrUnknownButton)) {
		h.broadcast(TypePromptClosed, id)
	}
	return err
}

// Dismiss closes a prompt without pressing a button.
func (h *Hub) Dismiss(id string) bool {
	if !h.prompts.Remove(id) {
		return false
	}
	h.broadcast(TypePromptClosed, id)
	return true
}

func (h *Hub) broadcast(kind string, payload any) {
	m := Message{Type: kind, Payload: payload, Time: time.Now().UTC()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.log.Warn("dropping message for slow client", "type", kind)
		}
	}
}

// ServeHTTP upgrades the request and streams messages until the client leaves.
// New clients first receive the current status and every open prompt.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	c := &client{send: make(chan Message, 64)}
	h.mu.Lock()
	if h.status != "" {
		c.send <- Message{Type: TypeStatus, Payload: h.status, Time: time.Now().UTC()}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	for _, p := range h.prompts.Pending() {
		select {
		case c.send <- Message{Type: TypePrompt, Payload: p, Time: time.Now().UTC()}:
		default:
		}
	}
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	// clients never send; CloseRead handles control frames and reports disconnects
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, m)
			cancel()
			if err != nil {
				h.log.Debug("websocket write", "err", err)
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
