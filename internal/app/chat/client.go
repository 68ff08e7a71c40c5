package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384

	// sendBuffer is the number of outbound frames queued per session.
	sendBuffer = 256

	// frameTimeout bounds the work triggered by one inbound frame.
	frameTimeout = 10 * time.Second
)

// FrameType is the type of an inbound client frame.
type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameMessage     FrameType = "message"
	FramePing        FrameType = "ping"
)

// Frame is a request sent by the client over the socket.
type Frame struct {
	Type    FrameType       `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
}

// MessagePayload is the payload of a message frame.
type MessagePayload struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Client struct represents an active WebSocket connection. It is the Sink of its session.
type Client struct {
	// live session id, also the router key.
	id string

	// authenticated user, empty for anonymous sessions.
	userID string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	manager *Manager

	// outbound frames waiting for WritePump. Never closed; done ends the session.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(sessionID, userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		id:      sessionID,
		userID:  userID,
		conn:    conn,
		manager: manager,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger: logx.Logger().With().
			Str("session_id", sessionID).
			Str("user_id", userID).
			Logger(),
	}
}

// ID returns the session id.
func (c *Client) ID() string {
	return c.id
}

// Deliver queues ev for the socket. When the queue is full it waits at most until ctx ends.
func (c *Client) Deliver(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}

	// A free slot always wins, even when ctx has already ended.
	select {
	case c.send <- b:
		return nil
	default:
	}

	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrSinkClosed
	case <-ctx.Done():
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping event")
		return ctx.Err()
	}
}

// Close ends the session's write loop. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump handles reading frames from the WebSocket connection until it fails,
// then unregisters the session and closes the connection.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.processInboundFrame(ctx, data)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.manager.Router.Disconnect(c.id)
	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) processInboundFrame(ctx context.Context, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.sendError(ctx, "", errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	fctx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	switch frame.Type {
	case FrameSubscribe:
		c.handleSubscribe(fctx, frame)
	case FrameUnsubscribe:
		c.manager.Router.Unsubscribe(c.id, frame.RoomID)
		c.sendAck(fctx, frame, "")
	case FrameMessage:
		c.handleMessage(fctx, frame)
	case FramePing:
		c.reply(fctx, mustEvent(EventPong, frame.RoomID, nil))
	default:
		c.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Client sent unsupported frame type")
		c.sendError(fctx, frame.TempID, errs.NewError(errs.ErrInvalidParams))
	}
}

func (c *Client) handleSubscribe(ctx context.Context, frame Frame) {
	if frame.RoomID == "" {
		c.sendError(ctx, frame.TempID, errs.NewError(errs.ErrInvalidParams))
		return
	}

	if err := c.manager.Router.Subscribe(ctx, c.id, frame.RoomID); err != nil {
		c.sendError(ctx, frame.TempID, err)
		return
	}
	c.sendAck(ctx, frame, "")
}

func (c *Client) handleMessage(ctx context.Context, frame Frame) {
	var payload MessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid message payload")
		c.sendError(ctx, frame.TempID, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	msg, err := c.manager.PostMessage(ctx, frame.RoomID, c.userID, payload.Content, payload.Attachments)
	if err != nil {
		c.sendError(ctx, frame.TempID, err)
		return
	}
	c.sendAck(ctx, frame, msg.ID)
}

// sendAck confirms a frame that carried a tempId.
func (c *Client) sendAck(ctx context.Context, frame Frame, messageID string) {
	if frame.TempID == "" {
		return
	}

	c.reply(ctx, mustEvent(EventAck, frame.RoomID, AckPayload{
		TempID:    frame.TempID,
		MessageID: messageID,
		Timestamp: time.Now().UnixMilli(),
	}))
}

// sendError reports a failed frame to this session only.
func (c *Client) sendError(ctx context.Context, tempID string, err error) {
	customErr := errs.Wrap(err)
	c.reply(ctx, mustEvent(EventError, "", ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
		TempID:  tempID,
	}))
}

func (c *Client) reply(ctx context.Context, ev Event) {
	if err := c.Deliver(ctx, ev); err != nil {
		c.logger.Debug().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to queue reply")
	}
}

// WritePump handles writing frames from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// write sends one frame. Returns false if WritePump should terminate.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}
	return true
}
