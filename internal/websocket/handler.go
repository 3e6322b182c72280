package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// controlMessage is sent by clients to change their topic filters.
type controlMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Handler struct {
	hub        *Hub
	authorizer *TopicAuthorizer
}

func NewHandler(hub *Hub, authorizer *TopicAuthorizer) *Handler {
	return &Handler{hub: hub, authorizer: authorizer}
}

// Connect upgrades /v1/stream. Authentication runs in middleware before it.
// Initial filters may be passed as repeated ?topic= parameters.
func (h *Handler) Connect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warnf("stream upgrade failed: %v", err)
		return
	}

	userID, _ := c.Request.Context().Value(logger.UserIdKey).(string)
	client := NewClient(conn, userID)
	for _, t := range c.QueryArray("topic") {
		if h.authorizer.CanSubscribe(t) {
			client.Subscribe(t)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)
	client.SendMessage(mustJSON(StreamMessage{Type: "ready"}))

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.control(client, data)
	}

	h.hub.Unregister(client)
}

func (h *Handler) control(client *Client, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendMessage(mustJSON(StreamMessage{Type: "error", Error: "malformed control message"}))
		return
	}
	for _, t := range msg.Topics {
		if !h.authorizer.CanSubscribe(t) {
			client.SendMessage(mustJSON(StreamMessage{Type: "error", Topic: t, Error: "unknown topic"}))
			continue
		}
		switch msg.Action {
		case "subscribe":
			client.Subscribe(t)
		case "unsubscribe":
			client.Unsubscribe(t)
		}
	}
	client.SendMessage(mustJSON(StreamMessage{Type: msg.Action}))
}

func mustJSON(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}
