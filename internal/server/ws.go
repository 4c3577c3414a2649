package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	readLimit        = 32768
	sendBufferSize   = 256
	requestQueueSize = 16
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.New().String()[:8],
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue queues a frame without blocking. Returns false if the client is
// gone or its buffer is full.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// deliver queues a frame, waiting for buffer space until ctx ends.
func (c *client) deliver(ctx context.Context, f OutgoingFrame) {
	frame, err := encodeFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.Log("[server] websocket accept error: %v", err)
		return
	}

	c := newClient(conn)
	s.register(c)
	defer s.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan string, requestQueueSize)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writePump(ctx, c)
	}()
	go func() {
		defer wg.Done()
		s.work(ctx, c, requests)
	}()

	s.readPump(ctx, c, requests)
	c.close()
	cancel()
	wg.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
}

// readPump decodes client frames until the connection fails. Pings are
// answered at once; messages queue for the worker so they run one at a time
// in arrival order.
func (s *Server) readPump(ctx context.Context, c *client, requests chan<- string) {
	c.conn.SetReadLimit(readLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Log("[server] client %s read error: %v", c.id, err)
			}
			return
		}

		var msg IncomingFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			c.deliver(ctx, errorFrame("invalid message format"))
			continue
		}

		switch msg.Type {
		case FramePing:
			c.deliver(ctx, OutgoingFrame{Type: FramePong})
		case FrameMessage:
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				c.deliver(ctx, errorFrame("empty message"))
				continue
			}
			select {
			case requests <- content:
			default:
				c.deliver(ctx, errorFrame("too many pending messages"))
			}
		default:
			c.deliver(ctx, errorFrame("unknown message type: "+msg.Type))
		}
	}
}

// work answers queued messages through the responder.
func (s *Server) work(ctx context.Context, c *client, requests <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case content := <-requests:
			s.logger.Log("[server] client %s: request %q", c.id, content)
			resp := s.responder.Respond(ctx, content)
			c.deliver(ctx, OutgoingFrame{
				Type:    FrameResponse,
				Content: resp.Text,
				RunID:   resp.Run.ID,
				Path:    resp.Run.Path,
			})
		}
	}
}

func (s *Server) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
				s.logger.Log("[server] client %s write error: %v", c.id, err)
				return
			}
		}
	}
}
