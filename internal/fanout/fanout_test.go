package fanout

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// compressingDialer negotiates permessage-deflate during the WebSocket
// handshake, matching what a real browser client offers; gorilla
// inflates incoming compressed frames transparently once negotiated, so
// ReadMessage below always sees the original bytes regardless of size.
var compressingDialer = websocket.Dialer{EnableCompression: true}

func TestBroadcastDeliversFrameToSubscriber(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := compressingDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give ServeHTTP's registration goroutine a moment to run before
	// broadcasting, since subscription happens asynchronously.
	waitForSubscribers(t, srv, 1)

	frame := []byte("small-frame")
	srv.Broadcast(frame)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("received %q, want %q", got, frame)
	}
	if srv.FramesSent() != 1 {
		t.Errorf("FramesSent = %d, want 1", srv.FramesSent())
	}
}

func TestBroadcastRoundTripsLargeFramesWithCompressionNegotiated(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := compressingDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, srv, 1)

	large := bytes.Repeat([]byte{0xAB}, 4096)
	srv.Broadcast(large)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Error("received payload does not match the broadcast frame")
	}
}

func TestSubscriberCountTracksConnections(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	waitForSubscribers(t, srv, 1)

	conn.Close()
	waitForSubscribers(t, srv, 0)
}

func waitForSubscribers(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("SubscriberCount did not reach %d in time (got %d)", want, srv.SubscriberCount())
}
