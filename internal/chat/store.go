package chat

import (
	"errors"
	"strings"
	"time"

	"social-app-server/internal/apperr"
	"social-app-server/internal/models"

	"gorm.io/gorm"
)

// MessageStore owns the durable message records. It performs no authorization;
// callers (the delivery service) enforce sender-only rules identically for the
// live path and the REST path.
type MessageStore struct {
	DB *gorm.DB
}

// NewMessageStore creates a message store backed by db.
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{DB: db}
}

// Create persists a new message and returns it with sender display fields
// preloaded.
func (s *MessageStore) Create(senderID, recipientID, content string, kind models.MessageKind, attachmentURL, attachmentName string) (*models.Message, error) {
	message := models.Message{
		ConversationID: ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Kind:           kind,
		AttachmentURL:  attachmentURL,
		AttachmentName: attachmentName,
	}

	if err := s.DB.Create(&message).Error; err != nil {
		return nil, apperr.Internal("failed to store message", err)
	}
	if err := s.DB.Preload("Sender").First(&message, "id = ?", message.ID).Error; err != nil {
		return nil, apperr.Internal("failed to load stored message", err)
	}
	return &message, nil
}

// GetByID fetches a message by id. Soft-deleted messages are reported as not
// found; once deleted a record is invisible to every read.
func (s *MessageStore) GetByID(id string) (*models.Message, error) {
	var message models.Message
	err := s.DB.Preload("Sender").Preload("Reactions").
		First(&message, "id = ? AND is_deleted = ?", id, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, apperr.Internal("database error fetching message", err)
	}
	return &message, nil
}

// ListByConversation returns non-deleted messages for a conversation,
// newest-first. A non-nil before narrows the page to older messages.
func (s *MessageStore) ListByConversation(conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.DB.Preload("Sender").Preload("Reactions").
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		Limit(limit)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}
	return messages, nil
}

// MarkConversationRead marks every unread, non-deleted message in the
// conversation addressed to recipientID as read and returns the ids of the
// messages it updated so read receipts can be emitted. The transition is
// one-directional: already-read messages are untouched.
func (s *MessageStore) MarkConversationRead(conversationID, recipientID string) ([]string, time.Time, error) {
	var ids []string
	err := s.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ? AND is_deleted = ?",
			conversationID, recipientID, false, false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, time.Time{}, apperr.Internal("failed to fetch unread messages", err)
	}
	if len(ids) == 0 {
		return nil, time.Time{}, nil
	}

	readAt := time.Now()
	err = s.DB.Model(&models.Message{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error
	if err != nil {
		return nil, time.Time{}, apperr.Internal("failed to mark messages as read", err)
	}
	return ids, readAt, nil
}

// Edit replaces the text of a message and sets its edited flag. Deleted
// messages cannot be edited: a delete that lands before an edit wins, since a
// deleted message is never displayed regardless of text.
func (s *MessageStore) Edit(id, content string) (*models.Message, error) {
	result := s.DB.Model(&models.Message{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"content": content, "is_edited": true})
	if result.Error != nil {
		return nil, apperr.Internal("failed to edit message", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("message not found")
	}
	return s.GetByID(id)
}

// SoftDelete marks a message deleted. The row is retained; it is excluded from
// all reads from this point on and is never un-deleted.
func (s *MessageStore) SoftDelete(id string) (*models.Message, error) {
	message, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	deletedAt := time.Now()
	err = s.DB.Model(message).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": deletedAt}).Error
	if err != nil {
		return nil, apperr.Internal("failed to delete message", err)
	}
	message.IsDeleted = true
	message.DeletedAt = &deletedAt
	return message, nil
}

// AddReaction records an emoji reaction. Re-adding an existing (user, emoji)
// pair is a no-op thanks to the composite primary key.
func (s *MessageStore) AddReaction(messageID, userID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return apperr.InvalidArg("emoji is required")
	}
	if _, err := s.GetByID(messageID); err != nil {
		return err
	}

	reaction := models.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	}
	err := s.DB.Where(models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).
		FirstOrCreate(&reaction).Error
	if err != nil {
		return apperr.Internal("failed to add reaction", err)
	}
	return nil
}

// RemoveReaction removes an emoji reaction if present.
func (s *MessageStore) RemoveReaction(messageID, userID, emoji string) error {
	err := s.DB.Delete(&models.Reaction{}, "message_id = ? AND user_id = ? AND emoji = ?",
		messageID, userID, emoji).Error
	if err != nil {
		return apperr.Internal("failed to remove reaction", err)
	}
	return nil
}
