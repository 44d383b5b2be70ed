package fanout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newWSPair(t *testing.T) (*WSConn, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case ws := <-serverSide:
		return NewWSConn(ws, time.Second), client
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
		return nil, nil
	}
}

func TestWSConnSend(t *testing.T) {
	conn, client := newWSPair(t)

	if err := conn.Send(context.Background(), []byte(`{"type":"image"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.TextMessage || string(msg) != `{"type":"image"}` {
		t.Errorf("got type=%d msg=%s", mt, msg)
	}
}

func TestWSConnClose(t *testing.T) {
	conn, client := newWSPair(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !conn.Closed() {
		t.Error("expected Closed after Close")
	}
	_ = conn.Close()

	if err := conn.Send(context.Background(), []byte("x")); err != ErrConnClosed {
		t.Errorf("expected ErrConnClosed, got %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure, got %v", err)
	}
}

func TestWSConnSendCanceled(t *testing.T) {
	conn, _ := newWSPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := conn.Send(ctx, []byte("x")); err == nil {
		t.Error("expected error on canceled context")
	}
}
