package chat

import (
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"social-app-server/internal/apperr"
	"social-app-server/internal/models"
	"social-app-server/internal/notify"

	"gorm.io/gorm"
)

// Service is the delivery protocol: the single implementation of send, edit,
// delete, mark-read and typing shared by the live-channel handler and the REST
// handlers, so the two surfaces can never drift. Persistence always precedes
// live delivery; an unreachable recipient is a normal branch, not a failure.
type Service struct {
	DB       *gorm.DB
	Store    *MessageStore
	Registry *Registry
	Notifier notify.Notifier
}

// NewService wires the delivery service.
func NewService(db *gorm.DB, registry *Registry, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		DB:       db,
		Store:    NewMessageStore(db),
		Registry: registry,
		Notifier: notifier,
	}
}

// SendInput carries the parameters of a send, regardless of which surface it
// entered through.
type SendInput struct {
	SenderID       string
	RecipientID    string
	Content        string
	Kind           models.MessageKind
	AttachmentURL  string
	AttachmentName string
}

// SendMessage validates, persists and delivers a message. The returned flag
// reports whether the recipient's live connection received it; when false the
// message is already durable and surfaces on the recipient's next history
// fetch. The notification collaborator is invoked fire-and-forget and has no
// bearing on the result.
func (s *Service) SendMessage(in SendInput) (*models.Message, bool, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, false, apperr.InvalidArg("message text is required")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, false, apperr.InvalidArg("message text exceeds 1000 characters")
	}
	if in.SenderID == in.RecipientID {
		return nil, false, apperr.InvalidArg("cannot send a message to yourself")
	}

	kind := in.Kind
	if kind == "" {
		kind = models.MessageKindText
	}
	switch kind {
	case models.MessageKindText:
		in.AttachmentURL = ""
		in.AttachmentName = ""
	case models.MessageKindImage, models.MessageKindFile, models.MessageKindVoice:
		if in.AttachmentURL == "" {
			return nil, false, apperr.InvalidArg("attachment is required for " + string(kind) + " messages")
		}
	default:
		return nil, false, apperr.InvalidArg("unknown message kind: " + string(in.Kind))
	}

	if _, err := s.userByID(in.SenderID); err != nil {
		return nil, false, err
	}
	if _, err := s.userByID(in.RecipientID); err != nil {
		return nil, false, err
	}

	message, err := s.Store.Create(in.SenderID, in.RecipientID, content, kind, in.AttachmentURL, in.AttachmentName)
	if err != nil {
		return nil, false, err
	}

	s.Notifier.MessageSent(message.SenderID, message.RecipientID, message.ID)

	delivered := s.Registry.Unicast(message.RecipientID, EventReceiveMessage, message)
	if !delivered {
		log.Printf("chat: recipient %s offline, message %s deferred to history", message.RecipientID, message.ID)
	}
	return message, delivered, nil
}

// EditMessage replaces the text of a message. Only the original sender may
// edit; on success both participants' live connections receive the edited
// event.
func (s *Service) EditMessage(userID, messageID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidArg("message text is required")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, apperr.InvalidArg("message text exceeds 1000 characters")
	}

	message, err := s.Store.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		log.Printf("chat: user %s denied edit of message %s owned by %s", userID, messageID, message.SenderID)
		return nil, apperr.Forbidden("only the sender can edit this message")
	}

	edited, err := s.Store.Edit(messageID, content)
	if err != nil {
		return nil, err
	}

	s.emitToPair(edited.SenderID, edited.RecipientID, EventMessageEdited, MessageEditedPayload{
		MessageID:      edited.ID,
		ConversationID: edited.ConversationID,
		Content:        edited.Content,
		IsEdited:       edited.IsEdited,
	})
	return edited, nil
}

// DeleteMessage soft-deletes a message. Only the original sender may delete;
// on success both participants' live connections receive the deleted event.
func (s *Service) DeleteMessage(userID, messageID string) (*models.Message, error) {
	message, err := s.Store.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		log.Printf("chat: user %s denied delete of message %s owned by %s", userID, messageID, message.SenderID)
		return nil, apperr.Forbidden("only the sender can delete this message")
	}

	deleted, err := s.Store.SoftDelete(messageID)
	if err != nil {
		return nil, err
	}

	s.emitToPair(deleted.SenderID, deleted.RecipientID, EventMessageDeleted, MessageDeletedPayload{
		MessageID:      deleted.ID,
		ConversationID: deleted.ConversationID,
		SenderID:       deleted.SenderID,
		RecipientID:    deleted.RecipientID,
	})
	return deleted, nil
}

// MarkConversationRead marks all unread messages from counterpartID to userID
// as read and sends a read confirmation per message to the counterpart if they
// are online. Returns the number of messages updated.
func (s *Service) MarkConversationRead(userID, counterpartID string) (int, error) {
	if userID == counterpartID {
		return 0, apperr.InvalidArg("cannot mark your own conversation with yourself")
	}

	ids, readAt, err := s.Store.MarkConversationRead(ConversationID(userID, counterpartID), userID)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.Registry.Unicast(counterpartID, EventReadConfirmation, ReadConfirmationPayload{
			MessageID: id,
			ReadBy:    userID,
			ReadAt:    readAt,
		})
	}
	return len(ids), nil
}

// ReadReceipt forwards a live-channel read signal to the original sender. It
// is an optimistic notification only and persists nothing; the REST mark-read
// call is the authoritative state change.
func (s *Service) ReadReceipt(readerID, senderID, messageID string) {
	s.Registry.Unicast(senderID, EventReadConfirmation, ReadConfirmationPayload{
		MessageID: messageID,
		ReadBy:    readerID,
		ReadAt:    time.Now(),
	})
}

// Typing forwards a typing indicator to the recipient if reachable. The signal
// is not persisted, not queued and not retried; if the recipient is offline it
// is simply lost.
func (s *Service) Typing(fromID, toID string, isTyping bool) {
	s.Registry.Unicast(toID, EventUserTyping, TypingPayload{UserID: fromID, IsTyping: isTyping})
}

// React adds or removes an emoji reaction. Either participant of the
// conversation may react; both sides receive the reaction event.
func (s *Service) React(userID, messageID, emoji string, remove bool) error {
	message, err := s.Store.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.SenderID != userID && message.RecipientID != userID {
		return apperr.Forbidden("only conversation participants can react")
	}

	if remove {
		err = s.Store.RemoveReaction(messageID, userID, emoji)
	} else {
		err = s.Store.AddReaction(messageID, userID, emoji)
	}
	if err != nil {
		return err
	}

	s.emitToPair(message.SenderID, message.RecipientID, EventMessageReaction, MessageReactionPayload{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		Removed:   remove,
	})
	return nil
}

// History returns a page of the conversation between userID and
// counterpartID, newest-first, excluding soft-deleted messages.
func (s *Service) History(userID, counterpartID string, before *time.Time, limit int) ([]models.Message, error) {
	if _, err := s.userByID(counterpartID); err != nil {
		return nil, err
	}
	return s.Store.ListByConversation(ConversationID(userID, counterpartID), before, limit)
}

// FindUser resolves a user by id or by username, in that order.
func (s *Service) FindUser(idOrUsername string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", idOrUsername).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal("database error resolving user", err)
	}

	err = s.DB.First(&user, "username = ?", idOrUsername).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("database error resolving user", err)
	}
	return &user, nil
}

func (s *Service) userByID(id string) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found: " + id)
		}
		return nil, apperr.Internal("database error resolving user", err)
	}
	return &user, nil
}

// emitToPair delivers an event to both participants' live connections. Both
// sides must converge after an edit or delete, so neither delivery depends on
// the other.
func (s *Service) emitToPair(a, b string, event string, payload interface{}) {
	s.Registry.Unicast(a, event, payload)
	s.Registry.Unicast(b, event, payload)
}
