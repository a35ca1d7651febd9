package models

import (
	"time"
)

// MessageKind represents the kind of content a message carries
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
	MessageKindVoice MessageKind = "voice"
)

// MaxMessageLength is the maximum number of characters a message may contain.
const MaxMessageLength = 1000

// Message represents a direct message between two users
type Message struct {
	BaseModel
	ConversationID string      `gorm:"size:80;index" json:"conversationId"`
	SenderID       string      `gorm:"size:36;index" json:"senderId"`
	RecipientID    string      `gorm:"size:36;index" json:"recipientId"`
	Content        string      `gorm:"type:text" json:"content"`
	Kind           MessageKind `gorm:"size:20;default:'text'" json:"kind"`
	AttachmentURL  string      `gorm:"type:text" json:"attachmentUrl,omitempty"`
	AttachmentName string      `gorm:"size:255" json:"attachmentName,omitempty"`
	IsEdited       bool        `gorm:"default:false" json:"isEdited"`
	IsDeleted      bool        `gorm:"default:false;index" json:"isDeleted"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
	IsRead         bool        `gorm:"default:false" json:"isRead"`
	ReadAt         *time.Time  `json:"readAt,omitempty"`

	// Relations
	Sender    User       `gorm:"foreignKey:SenderID" json:"sender"`
	Recipient User       `gorm:"foreignKey:RecipientID" json:"-"`
	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"reactions"`
}

// Reaction represents an emoji reaction to a message. The composite primary
// key collapses duplicate (user, emoji) pairs into a single row.
type Reaction struct {
	MessageID string    `gorm:"primaryKey;size:36" json:"messageId"`
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	Emoji     string    `gorm:"primaryKey;size:32" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}
