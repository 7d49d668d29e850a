package websocket

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"jobhub/internal/domain/entity"
	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/internal/usecase"
	"jobhub/pkg/errors"
	"jobhub/pkg/logger"
)

// Client frames.
const (
	MessageTypePing              = "ping"
	MessageTypeOpenConversation  = "open_conversation"
	MessageTypeCloseConversation = "close_conversation"
	MessageTypeSendMessage       = "send_message"
	MessageTypeRefreshContacts   = "refresh_contacts"
)

// Server frames.
const (
	MessageTypePong         = "pong"
	MessageTypeConversation = "conversation"
	MessageTypeContacts     = "contacts"
	MessageTypeMessageSent  = "message_sent"
	MessageTypeError        = "error"
)

// WebSocket Message Structure
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type OpenConversationData struct {
	PeerID string `json:"peer_id"`
}

type SendMessageData struct {
	TempID  string `json:"temp_id"`
	Content string `json:"content"`
}

type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	TempID     string `json:"temp_id,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type ConversationPayload struct {
	PeerID   string            `json:"peer_id"`
	Messages []*entity.Message `json:"messages"`
	Loading  bool              `json:"loading"`
	Error    *ErrorPayload     `json:"error,omitempty"`
}

type ContactsPayload struct {
	Contacts []*entity.Profile `json:"contacts"`
	Loading  bool              `json:"loading"`
	Error    *ErrorPayload     `json:"error,omitempty"`
}

type MessageSentPayload struct {
	TempID  string          `json:"temp_id"`
	Message *entity.Message `json:"message"`
}

func newConversationPayload(view usecase.ConversationView) ConversationPayload {
	messages := view.Messages
	if messages == nil {
		messages = []*entity.Message{}
	}
	return ConversationPayload{
		PeerID:   view.PeerID,
		Messages: messages,
		Loading:  view.Loading,
		Error:    newErrorPayload(view.Err),
	}
}

func newContactsPayload(view usecase.ContactsView) ContactsPayload {
	contacts := view.Contacts
	if contacts == nil {
		contacts = []*entity.Profile{}
	}
	return ContactsPayload{
		Contacts: contacts,
		Loading:  view.Loading,
		Error:    newErrorPayload(view.Err),
	}
}

func newErrorPayload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}

	if appErr, ok := errors.AsAppError(err); ok {
		return &ErrorPayload{Code: appErr.Code, Message: appErr.Message}
	}
	return &ErrorPayload{Code: errors.CodeInternal, Message: "An unexpected error occurred"}
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage

	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Warn("WebSocket: Failed to unmarshal message from client %s: %v", client.ID, err)
		m.sendErrorToClient(client, errors.CodeBadRequest, "Invalid message format")
		return
	}

	logger.Debug("WebSocket: Received message type '%s' from client %s", wsMessage.Type, client.ID)

	switch wsMessage.Type {
	case MessageTypePing:
		m.sendToClient(client, MessageTypePong, map[string]string{"status": "alive"})

	case MessageTypeOpenConversation:
		m.handleOpenConversation(client, wsMessage.Data)

	case MessageTypeCloseConversation:
		client.conversation.Close()

	case MessageTypeSendMessage:
		m.handleSendMessage(client, wsMessage.Data)

	case MessageTypeRefreshContacts:
		if err := client.contacts.Refresh(client.ctx, client.UserID); err != nil {
			logger.Warn("WebSocket: contact refresh for %s failed: %v", client.UserID, err)
		}

	default:
		logger.Warn("WebSocket: Unknown message type '%s' from client %s", wsMessage.Type, client.ID)
		m.sendErrorToClient(client, errors.CodeBadRequest, "Unknown message type")
	}
}

func (m *Manager) handleOpenConversation(client *Client, data json.RawMessage) {
	var openData OpenConversationData
	if err := json.Unmarshal(data, &openData); err != nil {
		m.sendErrorToClient(client, errors.CodeBadRequest, "Invalid open conversation format")
		return
	}

	peerID := strings.TrimSpace(openData.PeerID)
	if peerID == "" {
		m.sendErrorToClient(client, errors.CodeBadRequest, "peer_id is required")
		return
	}
	if peerID == client.UserID {
		m.sendErrorToClient(client, errors.CodeBadRequest, "You cannot open a conversation with yourself")
		return
	}

	// Load failures are carried by the conversation view itself.
	if err := client.conversation.Open(client.ctx, client.UserID, peerID); err != nil {
		logger.Warn("WebSocket: open conversation %s<->%s failed: %v", client.UserID, peerID, err)
	}
}

func (m *Manager) handleSendMessage(client *Client, data json.RawMessage) {
	var sendData SendMessageData
	if err := json.Unmarshal(data, &sendData); err != nil {
		m.sendErrorToClient(client, errors.CodeBadRequest, "Invalid send message format")
		return
	}

	if client.conversation.Snapshot().PeerID == "" {
		m.sendToClient(client, MessageTypeError, ErrorPayload{
			Code:    errors.CodeBadRequest,
			Message: "No conversation is open",
			TempID:  sendData.TempID,
		})
		return
	}

	if m.rateLimiter != nil {
		if allowed, retryAfter := m.rateLimiter.Allow(client.UserID, ratelimit.ActionSendMessage); !allowed {
			m.sendToClient(client, MessageTypeError, ErrorPayload{
				Code:       errors.CodeTooManyRequests,
				Message:    "Rate limit exceeded",
				TempID:     sendData.TempID,
				RetryAfter: int(math.Ceil(retryAfter.Seconds())),
			})
			return
		}
	}

	message, err := client.conversation.Send(client.ctx, sendData.Content)
	if err != nil {
		payload := newErrorPayload(err)
		payload.TempID = sendData.TempID
		m.sendToClient(client, MessageTypeError, payload)
		return
	}
	if message == nil {
		// Blank content.
		return
	}

	m.sendToClient(client, MessageTypeMessageSent, MessageSentPayload{
		TempID:  sendData.TempID,
		Message: message,
	})
}

func (m *Manager) sendToClient(client *Client, messageType string, data interface{}) {
	frame, err := json.Marshal(outgoingMessage{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("WebSocket: Failed to marshal %s frame: %v", messageType, err)
		return
	}

	client.enqueue(frame)
}

func (m *Manager) sendErrorToClient(client *Client, code, message string) {
	m.sendToClient(client, MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
