package realtime

import (
	"context"
	"sync"
	"time"

	"collab_editor/internal/config"
	"collab_editor/internal/domain"
	"collab_editor/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client - websocket соединение: read pump читает кадры и отдает их Relay,
// write pump пишет из буферизированной очереди и шлет ping.
type Client struct {
	id       string
	identity *domain.Identity
	conn     *websocket.Conn
	relay    *Relay
	cfg      config.WebSocketConfig
	log      logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id string, conn *websocket.Conn, identity *domain.Identity, relay *Relay, cfg config.WebSocketConfig, log logger.Logger) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		relay:    relay,
		cfg:      cfg,
		log:      log.With("connection_id", id),
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send не блокирует: при заполненной очереди кадр отбрасывается
func (c *Client) Send(frame []byte) bool {
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

// Run блокируется до закрытия соединения. ctx передается обработчикам событий
// и не отменяет уже начатую обработку.
func (c *Client) Run(ctx context.Context) {
	c.relay.Connect(c)
	go c.writePump()
	c.readPump(ctx)
}

// Close обрывает соединение; read pump завершится и вызовет Disconnect
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.relay.Disconnect(c.id)
		c.log.Debug("Connection closed")
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	from := Sender{ConnectionID: c.id, Identity: c.identity}
	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		c.relay.Handle(ctx, from, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("WebSocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
