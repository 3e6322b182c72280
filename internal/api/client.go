// Package api is the client for the chat backend's HTTP contracts.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/go-resty/resty/v2"
)

// Client is a resty-backed client for the chat contracts.
type Client struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, l *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if l == nil {
		l = logger.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if token != "" {
		httpClient.SetAuthToken(token)
	}
	return &Client{httpClient: httpClient, logger: l.Named("api")}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e errorBody) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

type conversationsResponse struct {
	Conversations []events.ConversationPayload `json:"conversations"`
}

type messagesResponse struct {
	Messages   []events.MessagePayload `json:"messages"`
	HasMore    bool                    `json:"hasMore"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

// Page is one page of message history, oldest first.
type Page struct {
	Messages   []message.Message
	HasMore    bool
	NextCursor string
}

type reactionResponse struct {
	Added bool `json:"added"`
}

// CreateConversationInput is the body of POST conversations.
type CreateConversationInput struct {
	Name         string            `json:"name,omitempty"`
	Type         conversation.Type `json:"type"`
	Participants []string          `json:"participants"`
}

// ListConversations calls GET conversations with the filter as query parameters.
func (c *Client) ListConversations(ctx context.Context, f conversation.Filter) ([]conversation.Conversation, error) {
	var out conversationsResponse
	var eb errorBody
	req := c.httpClient.R().SetContext(ctx).SetResult(&out).SetError(&eb)
	if f.Search != "" {
		req.SetQueryParam("search", f.Search)
	}
	if f.Type != "" {
		req.SetQueryParam("type", string(f.Type))
	}
	if f.UnreadOnly {
		req.SetQueryParam("unread", "true")
	}
	if f.PinnedOnly {
		req.SetQueryParam("pinned", "true")
	}
	if f.ArchivedOnly {
		req.SetQueryParam("archived", "true")
	}

	resp, err := req.Get("/conversations")
	if err := c.check(ctx, "list conversations", resp, err, eb); err != nil {
		return nil, err
	}
	list := make([]conversation.Conversation, 0, len(out.Conversations))
	for _, p := range out.Conversations {
		if p.ID == "" {
			continue
		}
		list = append(list, p.ToConversation())
	}
	return list, nil
}

// ListMessages calls GET messages for the page older than cursor, or the
// newest page when cursor is empty.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (Page, error) {
	var out messagesResponse
	var eb errorBody
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("conversationId", conversationID).
		SetResult(&out).
		SetError(&eb)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/messages")
	if err := c.check(ctx, "list messages", resp, err, eb); err != nil {
		return Page{}, err
	}
	page := Page{HasMore: out.HasMore, NextCursor: out.NextCursor}
	for _, p := range out.Messages {
		page.Messages = append(page.Messages, p.ToMessage(conversationID))
	}
	return page, nil
}

// SendMessage calls POST send and returns the confirmed record. The client
// id in the body lets the server de-duplicate retries.
func (c *Client) SendMessage(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
	var out events.MessagePayload
	var eb errorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		SetError(&eb).
		Post("/send")
	if err := c.check(ctx, "send message", resp, err, eb); err != nil {
		return message.Message{}, err
	}
	if out.ClientID == "" {
		out.ClientID = in.ClientID
	}
	return out.ToMessage(in.ConversationID), nil
}

// ToggleReaction calls POST reaction and reports whether the reaction is now present.
func (c *Client) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) (bool, error) {
	var out reactionResponse
	var eb errorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(events.ReactionIntentPayload{ConversationID: conversationID, MessageID: messageID, Emoji: emoji}).
		SetResult(&out).
		SetError(&eb).
		Post("/reaction")
	if err := c.check(ctx, "toggle reaction", resp, err, eb); err != nil {
		return false, err
	}
	return out.Added, nil
}

// MarkRead calls POST conversations/{id}/read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	var eb errorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetError(&eb).
		Post("/conversations/{id}/read")
	return c.check(ctx, "mark read", resp, err, eb)
}

// SetFlag calls PATCH conversations/{id} with exactly one flag in the body.
func (c *Client) SetFlag(ctx context.Context, conversationID string, flag conversation.Flag, value bool) error {
	if !flag.Valid() {
		return fmt.Errorf("%w: unknown flag %q", chat_errors.ErrInvalidInput, flag)
	}
	var eb errorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetBody(map[string]bool{string(flag): value}).
		SetError(&eb).
		Patch("/conversations/{id}")
	return c.check(ctx, "set "+string(flag), resp, err, eb)
}

// CreateConversation calls POST conversations.
func (c *Client) CreateConversation(ctx context.Context, in CreateConversationInput) (conversation.Conversation, error) {
	var out events.ConversationPayload
	var eb errorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		SetError(&eb).
		Post("/conversations")
	if err := c.check(ctx, "create conversation", resp, err, eb); err != nil {
		return conversation.Conversation{}, err
	}
	return out.ToConversation(), nil
}

// check maps transport failures and error statuses onto the error taxonomy.
func (c *Client) check(ctx context.Context, op string, resp *resty.Response, err error, eb errorBody) error {
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, chat_errors.ErrCancelled)
		}
		c.logger.WarnCtx(ctx, op+" failed: "+err.Error())
		return fmt.Errorf("%s: %w", op, chat_errors.Network(err))
	}
	if !resp.IsError() {
		return nil
	}

	detail := eb.text()
	if detail == "" {
		detail = resp.Status()
	}
	status := resp.StatusCode()
	var kind error
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusRequestEntityTooLarge:
		kind = chat_errors.ErrValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = chat_errors.ErrUnauthorized
	case status == http.StatusNotFound, status == http.StatusConflict, status == http.StatusGone:
		kind = chat_errors.ErrConflict
	default:
		kind = chat_errors.ErrNetwork
	}
	c.logger.WarnCtx(ctx, fmt.Sprintf("%s: status %d: %s", op, status, detail))
	return fmt.Errorf("%s: %w: %s", op, kind, detail)
}
