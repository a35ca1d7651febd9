package chat

import (
	"time"

	"social-app-server/internal/models"
)

// Live-channel event names, client to server.
const (
	EventJoin        = "join"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventMessageRead = "message_read"
)

// Live-channel event names, server to client.
const (
	EventReceiveMessage   = "receive_message"
	EventMessageSent      = "message_sent"
	EventMessageError     = "message_error"
	EventUserOnline       = "user_online"
	EventUserOffline      = "user_offline"
	EventUserTyping       = "user_typing"
	EventReadConfirmation = "message_read_confirmation"
	EventMessageDeleted   = "message_deleted"
	EventMessageEdited    = "message_edited"
	EventMessageReaction  = "message_reaction"
)

// MessageSentPayload acknowledges a send to the sender's own connection.
type MessageSentPayload struct {
	CorrelationID string    `json:"correlationId"`
	MessageID     string    `json:"messageId"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// MessageErrorPayload reports a failed send tied to the client's correlation id.
type MessageErrorPayload struct {
	CorrelationID string `json:"correlationId"`
	Error         string `json:"error"`
}

// PresencePayload announces an online/offline transition.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// TypingPayload carries a typing indicator to the recipient.
type TypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ReadConfirmationPayload tells the original sender a message was read.
type ReadConfirmationPayload struct {
	MessageID string    `json:"messageId"`
	ReadBy    string    `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}

// MessageDeletedPayload propagates a delete to both participants.
type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
}

// MessageEditedPayload propagates an edit to both participants.
type MessageEditedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	IsEdited       bool   `json:"isEdited"`
}

// MessageReactionPayload propagates a reaction change to both participants.
type MessageReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
	Removed   bool   `json:"removed"`
}

// ConversationSummary is the derived inbox row for one counterpart. It is
// computed on demand and never stored.
type ConversationSummary struct {
	Counterpart models.UserSanitized `json:"counterpart"`
	LastMessage *models.Message      `json:"lastMessage"`
	UnreadCount int64                `json:"unreadCount"`
}
