// Package fanout implements the WebSocket spectrum fan-out server. Each
// subscriber gets a dedicated writer goroutine fed by a buffered
// channel: a slow client never blocks distribution to the others, it
// just falls behind and gets dropped frames once its buffer fills.
package fanout

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/flate"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 10 * time.Second
	pongTimeout   = 30 * time.Second

	// queueDepth bounds how far a subscriber can lag before frames drop.
	queueDepth = 30

	// dropHighWater/dropLowWater implement the bufferedAmount-based
	// backpressure policy: once a subscriber's queue looks "full" by
	// byte estimate it is flagged; it only clears once comfortably
	// drained.
	dropHighWaterBytes = 1 << 20 // 1 MiB
	dropLowWaterBytes  = 512 << 10

	// backpressureEvery emits a synthetic control frame to the client
	// once per this many consecutive drops, so a congested client can
	// learn it is falling behind without every dropped frame costing a
	// message.
	backpressureEvery = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server fans spectrum frames out to any number of WebSocket
// subscribers.
type Server struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}

	framesSent    uint64
	framesDropped uint64
}

// New builds an empty fan-out server.
func New() *Server {
	return &Server{subs: make(map[*subscriber]struct{})}
}

type subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	send chan []byte
	done chan struct{}

	bufferedBytes   int64
	flagged         int32
	consecutiveDrop int
}

// ServeHTTP upgrades the connection and registers it as a subscriber
// until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("fanout: upgrade: %v", err)
		return
	}
	// Negotiated permessage-deflate: the client learns from the
	// RSV1 bit on each frame whether to inflate it, unlike a hand-rolled
	// compressed blob sent as an indistinguishable binary message.
	conn.EnableWriteCompression(true)
	conn.SetCompressionLevel(flate.BestSpeed)

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, queueDepth),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.writerLoop(sub)
	go s.readerLoop(sub)
}

// writerLoop owns all writes to the connection: spectrum frames off
// sub.send, plus periodic pings. No other goroutine calls
// conn.WriteMessage for this subscriber.
func (s *Server) writerLoop(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.remove(sub)

	for {
		select {
		case packet, ok := <-sub.send:
			if !ok {
				return
			}
			sub.writeMu.Lock()
			// Deflate only frames larger than 1 KiB; smaller ones go
			// out uncompressed.
			sub.conn.EnableWriteCompression(len(packet) > 1024)
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err := sub.conn.WriteMessage(websocket.BinaryMessage, packet)
			sub.writeMu.Unlock()
			atomic.AddInt64(&sub.bufferedBytes, -int64(len(packet)))
			if err != nil {
				return
			}
			atomic.AddUint64(&s.framesSent, 1)

		case <-ticker.C:
			sub.writeMu.Lock()
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err := sub.conn.WriteMessage(websocket.PingMessage, nil)
			sub.writeMu.Unlock()
			if err != nil {
				return
			}

		case <-sub.done:
			return
		}
	}
}

// readerLoop only exists to drain control frames and detect
// disconnects; this server does not accept client-to-server messages.
func (s *Server) readerLoop(sub *subscriber) {
	sub.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			close(sub.done)
			sub.conn.Close()
			return
		}
	}
}

func (s *Server) remove(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Broadcast distributes frame to every connected subscriber, applying
// the drop policy per subscriber. Compression is handled per-connection
// by the WebSocket layer itself (each subscriber's conn negotiated
// permessage-deflate during the handshake), so frame travels through
// the queue uncompressed and writerLoop's WriteMessage call deflates it
// on the wire, when it is larger than 1 KiB, for whichever subscribers
// support it.
func (s *Server) Broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		buffered := atomic.LoadInt64(&sub.bufferedBytes)

		if buffered > dropHighWaterBytes {
			atomic.StoreInt32(&sub.flagged, 1)
		} else if buffered < dropLowWaterBytes {
			atomic.StoreInt32(&sub.flagged, 0)
		}

		if atomic.LoadInt32(&sub.flagged) != 0 {
			sub.consecutiveDrop++
			atomic.AddUint64(&s.framesDropped, 1)
			if sub.consecutiveDrop%backpressureEvery == 0 {
				s.sendBackpressureNotice(sub)
			}
			continue
		}

		select {
		case sub.send <- frame:
			atomic.AddInt64(&sub.bufferedBytes, int64(len(frame)))
			sub.consecutiveDrop = 0
		default:
			atomic.AddUint64(&s.framesDropped, 1)
			sub.consecutiveDrop++
			if sub.consecutiveDrop%backpressureEvery == 0 {
				s.sendBackpressureNotice(sub)
			}
		}
	}
}

// sendBackpressureNotice writes a tiny synthetic control frame directly
// (bypassing the queue) so a congested client learns it is dropping
// frames even while its data queue stays full.
func (s *Server) sendBackpressureNotice(sub *subscriber) {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = sub.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"backpressure"}`))
}

// SubscriberCount reports the current number of connected clients, for
// metrics.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) FramesSent() uint64    { return atomic.LoadUint64(&s.framesSent) }
func (s *Server) FramesDropped() uint64 { return atomic.LoadUint64(&s.framesDropped) }
