package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/huddle/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Notify(model.NewNotice("meeting", "created", 42).WithMessage("success", "Saved"))

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got model.Notice
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "meeting_created" {
				t.Errorf("expected type meeting_created, got %s", got.Type)
			}
			if got.Entity != "meeting" {
				t.Errorf("expected entity meeting, got %s", got.Entity)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
			if got.Level != "success" || got.Message != "Saved" {
				t.Errorf("expected success message, got %s %q", got.Level, got.Message)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(model.NewNotice("state", "refreshed", 0))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(model.NewNotice("test", "fill", int64(i)))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(model.NewNotice("test", "dropped", 999))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}
	if got := hub.Dropped(); got != 1 {
		t.Errorf("expected 1 dropped notice, got %d", got)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Notify(model.NewNotice("test", "concurrent", 0))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketDeliversNotices(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, slog.Default(), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	for hub.ClientCount() == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Notify(model.NewNotice("meeting", "moved", 7))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got model.Notice
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "meeting_moved" || got.ID != 7 {
		t.Errorf("got %+v, want meeting_moved for 7", got)
	}
}

func TestSubscribeFiltersNotices(t *testing.T) {
	hub := NewHub(slog.Default())

	all := NewClient(hub, nil)
	meetings := NewClient(hub, nil)
	meetings.Subscribe("meeting")
	hub.Register(all)
	hub.Register(meetings)
	defer hub.Unregister(all)
	defer hub.Unregister(meetings)

	hub.Notify(model.NewNotice("settings", "week_type", 0))
	hub.Notify(model.NewNotice("meeting", "created", 3))

	if got := len(all.send); got != 2 {
		t.Errorf("unfiltered client got %d notices, want 2", got)
	}
	if got := len(meetings.send); got != 1 {
		t.Fatalf("subscribed client got %d notices, want 1", got)
	}
	var n model.Notice
	if err := json.Unmarshal(<-meetings.send, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Entity != "meeting" {
		t.Errorf("entity = %q, want meeting", n.Entity)
	}

	meetings.Subscribe()
	if !meetings.wants("settings") {
		t.Error("empty subscription should restore the full stream")
	}
}

func TestSubscribeFrameOverWebSocket(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, slog.Default(), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"subscribe":["category"]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	subscribed := func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			return !c.wants("meeting") && c.wants("category")
		}
		return false
	}
	for !subscribed() {
		if ctx.Err() != nil {
			t.Fatal("subscription never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Notify(model.NewNotice("meeting", "created", 1))
	hub.Notify(model.NewNotice("category", "saved", 0))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got model.Notice
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "category_saved" {
		t.Errorf("first notice = %q, want category_saved", got.Type)
	}
}
