package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairgate/internal/pkg/logx"
	"pairgate/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// buffered outbound frames per connection; Emit drops when full.
	sendQueueSize = 256

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// Conn wraps an upgraded websocket with its read/write pumps and implements
// presence.Sender. The handshake material is retained for the connection's
// lifetime so events can fall back to it for credentials.
type Conn struct {
	id        string
	namespace string
	ws        *websocket.Conn
	source    HandshakeSource
	gateway   *Gateway

	send chan []byte

	// done is closed exactly once, via closeOnce; Emit and WritePump use it
	// to stop touching the socket after shutdown.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConn wraps an upgraded socket for the given namespace. The caller must
// start WritePump, register the connection, then run ReadPump.
func (g *Gateway) NewConn(ws *websocket.Conn, namespace string, source HandshakeSource) *Conn {
	id := randx.ConnectionID()

	return &Conn{
		id:        id,
		namespace: namespace,
		ws:        ws,
		source:    source,
		gateway:   g,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		logger: logx.Logger().With().
			Str("conn_id", id).
			Str("namespace", namespace).
			Logger(),
	}
}

// ID returns the transport-assigned connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Emit marshals an outbound frame and queues it without blocking. A full
// queue or closed connection is reported as an error; the caller decides
// whether that matters.
func (c *Conn) Emit(event string, data any) error {
	frame := outboundFrame{
		Event:     event,
		Data:      data,
		Timestamp: nowTimestamp(),
	}

	messageBytes, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling outbound frame")
		return err
	}

	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	case c.send <- messageBytes:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", event).Msg("Send queue full, dropping frame")
		return fmt.Errorf("send queue full")
	}
}

// Kick closes the connection with a custom Close Frame (Code 4001) telling
// the client its session was replaced. Safe to call from any goroutine;
// WriteControl may run concurrently with the write pump.
func (c *Conn) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)

	if err := c.ws.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message.")
	}

	c.shutdown()
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame parsing, and performs cleanup upon
// connection closure. Runs on the upgrade handler's goroutine.
func (c *Conn) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.processInboundFrame(ctx, messageBytes)
	}
}

// cleanupOnDisconnect unregisters the connection and closes the socket when
// ReadPump terminates.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.gateway.lifecycle.OnDisconnect(c.id)
	c.shutdown()

	if err := c.ws.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// processInboundFrame parses one raw frame and hands it to the dispatcher.
// Malformed frames are logged and dropped without disconnecting the client.
func (c *Conn) processInboundFrame(ctx context.Context, messageBytes []byte) {
	var env Envelope
	if err := json.Unmarshal(messageBytes, &env); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	if env.Event == "" {
		c.logger.Warn().Msg("Client sent frame without event name")
		return
	}

	c.gateway.HandleEvent(ctx, c.id, c.source, c.namespace, env)
}

// WritePump handles writing frames from the send channel to the WebSocket
// connection, plus the ping heartbeat. Runs on its own goroutine.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeQueuedFrame(message) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing close message")
			}
			return
		}
	}
}

// writeQueuedFrame writes one queued frame to the WebSocket. Returns true if
// the WritePump loop should continue, false if it should terminate.
func (c *Conn) writeQueuedFrame(message []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the
// connection heartbeat. Returns false if the WritePump loop should terminate.
func (c *Conn) writePingMessage() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
