package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tinoosan/gamedock/internal/prompt"
)

func newHub() *Hub { return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func dial(t *testing.T, h *Hub) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	var m map[string]any
	if err := wsjson.Read(ctx, conn, &m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubReplaysStateToNewClients(t *testing.T) {
	h := newHub()
	h.Message("Reloading games...")
	h.Show(&prompt.Prompt{ID: "p1", Text: "Uninstall?"})

	conn, ctx := dial(t, h)
	if m := read(t, ctx, conn); m["type"] != TypeStatus || m["payload"] != "Reloading games..." {
		t.Fatalf("first message = %v", m)
	}
	m := read(t, ctx, conn)
	if m["type"] != TypePrompt {
		t.Fatalf("second message = %v", m)
	}
	if p, _ := m["payload"].(map[string]any); p["id"] != "p1" {
		t.Fatalf("prompt payload = %v", m["payload"])
	}
}

func TestHubBroadcasts(t *testing.T) {
	h := newHub()
	conn, ctx := dial(t, h)
	waitClients(t, h, 1)

	h.Publish("download", map[string]string{"titleId": "Sugar"})
	if m := read(t, ctx, conn); m["type"] != "download" {
		t.Fatalf("message = %v", m)
	}
	h.Open("https://example.com")
	if m := read(t, ctx, conn); m["type"] != TypeOpen || m["payload"] != "https://example.com" {
		t.Fatalf("message = %v", m)
	}
}

func TestHubAnswer(t *testing.T) {
	h := newHub()
	pressed := ""
	h.Show(&prompt.Prompt{ID: "p1", Buttons: []prompt.Button{{Label: "Back", Action: func(ctx context.Context, r prompt.Response) error {
		pressed = r.Button
		return nil
	}}}})
	if err := h.Answer(context.Background(), "p1", prompt.Response{Button: "Back"}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if pressed != "Back" || len(h.Prompts()) != 0 {
		t.Fatalf("pressed=%q pending=%d", pressed, len(h.Prompts()))
	}
	if err := h.Answer(context.Background(), "p1", prompt.Response{Button: "Back"}); !errors.Is(err, prompt.ErrUnknownPrompt) {
		t.Fatalf("err = %v", err)
	}
	h.Show(&prompt.Prompt{ID: "p2"})
	if !h.Dismiss("p2") || h.Dismiss("p2") {
		t.Fatalf("dismiss should succeed once")
	}
}
