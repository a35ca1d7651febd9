package handlers

import (
	"strconv"
	"time"

	"social-app-server/internal/apperr"
	"social-app-server/internal/chat"
	"social-app-server/internal/middleware"
	"social-app-server/internal/models"
	"social-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// MessageHandler exposes the messaging core over REST. Every mutation goes
// through the same chat.Service operations as the live channel, so both
// surfaces emit identical events and enforce identical authorization.
type MessageHandler struct {
	Service *chat.Service
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(service *chat.Service) *MessageHandler {
	return &MessageHandler{Service: service}
}

// respondError maps a service error to the uniform response envelope.
func respondError(c *gin.Context, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument:
		utils.BadRequest(c, err.Error())
	case apperr.CodeNotFound:
		utils.NotFound(c, err.Error())
	case apperr.CodePermissionDenied:
		utils.Forbidden(c, err.Error())
	case apperr.CodeUnauthenticated:
		utils.Unauthorized(c, err.Error())
	default:
		utils.InternalServerError(c, err.Error())
	}
}

// GetHistory handles fetching paginated conversation history with one
// counterpart, identified by id or username.
func (h *MessageHandler) GetHistory(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	withUser := c.Query("withUser")
	if withUser == "" {
		utils.BadRequest(c, "withUser query parameter is required")
		return
	}

	counterpart, err := h.Service.FindUser(withUser)
	if err != nil {
		respondError(c, err)
		return
	}

	var before *time.Time
	if beforeStr := c.Query("before"); beforeStr != "" {
		t, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			utils.BadRequest(c, "Invalid 'before' timestamp. Use RFC3339 format (e.g., 2006-01-02T15:04:05Z07:00)")
			return
		}
		before = &t
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	messages, err := h.Service.History(userID, counterpart.ID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Messages fetched successfully", gin.H{
		"counterpart": counterpart.Sanitize(),
		"messages":    messages,
	})
}

// GetConversations handles fetching the inbox view: one summary per
// counterpart with last message and unread count.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	summaries, err := h.Service.Conversations(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Conversations fetched successfully", summaries)
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	RecipientID    string `json:"recipientId" binding:"required"`
	Content        string `json:"content" binding:"required"`
	Kind           string `json:"kind"`
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentName string `json:"attachmentName"`
}

// SendMessage handles a REST-originated send. Connected peers still receive
// the live receive_message event because the shared service emits it.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	message, delivered, err := h.Service.SendMessage(chat.SendInput{
		SenderID:       userID,
		RecipientID:    req.RecipientID,
		Content:        req.Content,
		Kind:           models.MessageKind(req.Kind),
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, "Message sent successfully", gin.H{
		"message":   message,
		"delivered": delivered,
	})
}

// MarkReadRequest represents the request body for a bulk mark-as-read.
type MarkReadRequest struct {
	CounterpartID string `json:"counterpartId" binding:"required"`
}

// MarkConversationRead handles the bulk mark-as-read for all unread messages
// from one counterpart. The counterpart receives live read confirmations if
// connected.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req MarkReadRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Service.MarkConversationRead(userID, req.CounterpartID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Messages marked as read", gin.H{"updated": count})
}

// EditMessageRequest represents the request body for editing a message.
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage handles editing a message. Sender-only; both participants
// receive the live message_edited event.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req EditMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	message, err := h.Service.EditMessage(userID, c.Param("messageId"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Message edited successfully", message)
}

// DeleteMessage handles soft-deleting a message. Sender-only; both
// participants receive the live message_deleted event.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	message, err := h.Service.DeleteMessage(userID, c.Param("messageId"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Message deleted successfully", gin.H{
		"messageId":      message.ID,
		"conversationId": message.ConversationID,
	})
}

// ReactionRequest represents the request body for adding a reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// AddReaction handles adding an emoji reaction to a message.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req ReactionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := h.Service.React(userID, c.Param("messageId"), req.Emoji, false); err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Reaction added", nil)
}

// RemoveReaction handles removing an emoji reaction from a message.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	emoji := c.Query("emoji")
	if emoji == "" {
		utils.BadRequest(c, "emoji query parameter is required")
		return
	}

	if err := h.Service.React(userID, c.Param("messageId"), emoji, true); err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, "Reaction removed", nil)
}
