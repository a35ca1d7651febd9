package chat

import (
	"errors"
	"sort"

	"social-app-server/internal/apperr"
	"social-app-server/internal/models"

	"gorm.io/gorm"
)

// Conversations builds the inbox view for a user: one summary per distinct
// counterpart, carrying the latest non-deleted message and the count of unread
// messages addressed to the user, ordered newest-last-message-first.
//
// This is a read-only, on-demand aggregation (inbox open). It re-scans the
// message table and must never be called on the send path.
func (s *Service) Conversations(userID string) ([]ConversationSummary, error) {
	var partners []struct {
		PartnerID string `gorm:"column:partner_id"`
	}

	// Find all distinct users the current user has exchanged non-deleted
	// messages with.
	err := s.DB.Raw(`
		SELECT DISTINCT partner_id FROM (
			SELECT recipient_id AS partner_id FROM messages WHERE sender_id = ? AND is_deleted = ?
			UNION
			SELECT sender_id AS partner_id FROM messages WHERE recipient_id = ? AND is_deleted = ?
		) AS partners
	`, userID, false, userID, false).Scan(&partners).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch conversation partners", err)
	}

	summaries := make([]ConversationSummary, 0, len(partners))
	for _, p := range partners {
		var partnerUser models.User
		if err := s.DB.First(&partnerUser, "id = ?", p.PartnerID).Error; err != nil {
			continue // skip counterparts that no longer resolve
		}

		conversationID := ConversationID(userID, p.PartnerID)

		var lastMessage models.Message
		err := s.DB.Preload("Sender").
			Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
			Order("created_at DESC").
			First(&lastMessage).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue // every message in the conversation was deleted
			}
			return nil, apperr.Internal("failed to fetch last message", err)
		}

		var unreadCount int64
		err = s.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND recipient_id = ? AND is_read = ? AND is_deleted = ?",
				conversationID, userID, false, false).
			Count(&unreadCount).Error
		if err != nil {
			return nil, apperr.Internal("failed to count unread messages", err)
		}

		msg := lastMessage
		summaries = append(summaries, ConversationSummary{
			Counterpart: partnerUser.Sanitize(),
			LastMessage: &msg,
			UnreadCount: unreadCount,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, nil
}
