package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 16

	// Pointer moves arrive at display rate while drawing
	messagesPerSecond = 120
	burstLimit        = 240

	// Time allowed to flush pending writes once the editor goes away.
	closeWait = 10 * time.Second
)

type MessageHandler func(client *Client, messageType int, messageBytes []byte)

func NewClient(hub *Hub, conn *websocket.Conn, user models.User, handler MessageHandler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:     hub,
		conn:    conn,
		user:    user,
		handler: handler,
		Send:    make(chan []byte, 128),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
	}
}

// Client is one open editor: a websocket connection and the sync loop of
// the note it shows. A zero user means an anonymous viewer.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	user    models.User
	handler MessageHandler
	loop    *notesync.Loop
	// shareCode is the code the hub has this client watching. Owned by
	// the hub goroutine.
	shareCode string
	Send      chan []byte // Buffered channel of outbound messages.
	ctx       context.Context
	cancel    context.CancelFunc
	limiter   *rate.Limiter

	kickOnce   sync.Once
	kickReason string
}

type responseMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// sendMessage queues msg for the peer. A peer that stopped reading loses
// messages instead of stalling the sender.
func (c *Client) sendMessage(msg responseMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	select {
	case c.Send <- msgBytes:
	case <-c.ctx.Done():
	default:
		log.Printf("Dropping %s message: send buffer full", msg.Type)
	}
}

// Notify implements notesync.Listener.
func (c *Client) Notify(msg string) {
	c.sendMessage(responseMessage{Type: "notify", Data: map[string]any{"message": msg}})
}

// RemoteApplied implements notesync.Listener.
func (c *Client) RemoteApplied() {
	c.sendState(true)
}

func (c *Client) sendState(withImage bool) {
	view := c.loop.Session().View()
	if !withImage {
		view.ImageData = ""
	}
	c.sendMessage(responseMessage{Type: "state", Data: view})
}

// kick closes the connection with reason.
func (c *Client) kick(reason string) {
	c.kickOnce.Do(func() {
		c.kickReason = reason
		c.cancel()
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.CloseCh <- c
		c.kick("")
		c.conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), closeWait)
		defer cancel()
		c.loop.Close(ctx)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection for note %s: message rate limit exceeded", c.loop.Session().NoteId())
			break
		}

		c.handler(c, messageType, messageBytes)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			closeCode := websocket.CloseNormalClosure
			if c.kickReason != "" {
				closeCode = websocket.ClosePolicyViolation
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeCode, c.kickReason),
			)
			return

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
