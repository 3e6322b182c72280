package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"marketplace-chat/internal/events"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
	maxInboundBytes     = 1 << 20
)

// WebSocketDialer connects to the realtime endpoint over gorilla/websocket.
type WebSocketDialer struct {
	URL          string
	Token        string
	Header       http.Header
	Dialer       *websocket.Dialer
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	Logger       *logger.Logger
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: websocket handshake: %s", chat_errors.ErrUnauthorized, resp.Status)
		}
		return nil, chat_errors.Network(err)
	}

	c := &wsConn{
		ws:           ws,
		pingInterval: orDefault(d.PingInterval, defaultPingInterval),
		pongWait:     orDefault(d.PongWait, defaultPongWait),
		writeWait:    orDefault(d.WriteWait, defaultWriteWait),
		logger:       d.Logger,
		stop:         make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	ws.SetReadLimit(maxInboundBytes)
	_ = ws.SetReadDeadline(time.Now().Add(c.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	go c.pingLoop()
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type wsConn struct {
	ws           *websocket.Conn
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
	logger       *logger.Logger

	writeMu   sync.Mutex
	stop      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ReadEnvelope(ctx context.Context) (events.Envelope, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return events.Envelope{}, chat_errors.Network(err)
		}
		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warnf("skipping malformed frame: %v", err)
			continue
		}
		return env, nil
	}
}

func (c *wsConn) WriteIntent(ctx context.Context, in events.Intent) error {
	deadline := time.Now().Add(c.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(in); err != nil {
		return chat_errors.Network(err)
	}
	return nil
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeWait)); err != nil {
				c.logger.Debugf("ping failed: %v", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
