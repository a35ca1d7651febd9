package chat

import (
	"fmt"
	"testing"
	"time"

	"social-app-server/internal/apperr"
	"social-app-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestStoreCreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	message, err := store.Create(alice.ID, bob.ID, "hello", models.MessageKindText, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID)
	assert.Equal(t, ConversationID(alice.ID, bob.ID), message.ConversationID)
	assert.False(t, message.IsRead)
	assert.False(t, message.IsEdited)
	assert.Equal(t, "alice", message.Sender.Username)

	got, err := store.GetByID(message.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestStoreGetByIDNotFound(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)

	_, err := store.GetByID("no-such-id")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestStoreListByConversation(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		msg, err := store.Create(alice.ID, bob.ID, fmt.Sprintf("msg-%d", i), models.MessageKindText, "", "")
		require.NoError(t, err)
		// Space out timestamps deterministically.
		require.NoError(t, db.Model(msg).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	// A message in another conversation must not leak in.
	_, err := store.Create(alice.ID, carol.ID, "other", models.MessageKindText, "", "")
	require.NoError(t, err)

	messages, err := store.ListByConversation(ConversationID(bob.ID, alice.ID), nil, 50)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "msg-2", messages[0].Content, "newest first")
	assert.Equal(t, "msg-0", messages[2].Content)

	t.Run("pagination with before", func(t *testing.T) {
		cursor := messages[0].CreatedAt
		page, err := store.ListByConversation(ConversationID(alice.ID, bob.ID), &cursor, 50)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "msg-1", page[0].Content)
	})

	t.Run("limit", func(t *testing.T) {
		page, err := store.ListByConversation(ConversationID(alice.ID, bob.ID), nil, 1)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestStoreSoftDeleteExcludedEverywhere(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	message, err := store.Create(alice.ID, bob.ID, "doomed", models.MessageKindText, "", "")
	require.NoError(t, err)

	deleted, err := store.SoftDelete(message.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)

	// The row is retained but invisible to every read.
	_, err = store.GetByID(message.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	messages, err := store.ListByConversation(message.ConversationID, nil, 50)
	require.NoError(t, err)
	assert.Empty(t, messages)

	var raw models.Message
	require.NoError(t, db.First(&raw, "id = ?", message.ID).Error)
	assert.True(t, raw.IsDeleted)
}

func TestStoreEditRefusesDeleted(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	message, err := store.Create(alice.ID, bob.ID, "original", models.MessageKindText, "", "")
	require.NoError(t, err)

	_, err = store.SoftDelete(message.ID)
	require.NoError(t, err)

	// Delete dominates edit.
	_, err = store.Edit(message.ID, "changed")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	var raw models.Message
	require.NoError(t, db.First(&raw, "id = ?", message.ID).Error)
	assert.Equal(t, "original", raw.Content)
	assert.False(t, raw.IsEdited)
}

func TestStoreEdit(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	message, err := store.Create(alice.ID, bob.ID, "typo", models.MessageKindText, "", "")
	require.NoError(t, err)
	createdAt := message.CreatedAt

	edited, err := store.Edit(message.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, createdAt.Unix(), edited.CreatedAt.Unix(), "edits never touch createdAt")
	assert.Equal(t, message.ConversationID, edited.ConversationID)
}

func TestStoreMarkConversationRead(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	m1, err := store.Create(alice.ID, bob.ID, "one", models.MessageKindText, "", "")
	require.NoError(t, err)
	m2, err := store.Create(alice.ID, bob.ID, "two", models.MessageKindText, "", "")
	require.NoError(t, err)
	// A message bob sent must not be marked by bob's own read.
	m3, err := store.Create(bob.ID, alice.ID, "reply", models.MessageKindText, "", "")
	require.NoError(t, err)

	conversationID := ConversationID(alice.ID, bob.ID)
	ids, readAt, err := store.MarkConversationRead(conversationID, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m1.ID, m2.ID}, ids)
	assert.False(t, readAt.IsZero())

	got, err := store.GetByID(m1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	got3, err := store.GetByID(m3.ID)
	require.NoError(t, err)
	assert.False(t, got3.IsRead)

	t.Run("monotonic and idempotent", func(t *testing.T) {
		ids, _, err := store.MarkConversationRead(conversationID, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, ids, "already-read messages are untouched")

		got, err := store.GetByID(m2.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead, "isRead never reverts")
	})
}

func TestStoreReactions(t *testing.T) {
	db := testDB(t)
	store := NewMessageStore(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	message, err := store.Create(alice.ID, bob.ID, "react to me", models.MessageKindText, "", "")
	require.NoError(t, err)

	require.NoError(t, store.AddReaction(message.ID, bob.ID, "❤️"))
	// A duplicate (user, emoji) pair collapses to one row.
	require.NoError(t, store.AddReaction(message.ID, bob.ID, "❤️"))
	require.NoError(t, store.AddReaction(message.ID, alice.ID, "❤️"))

	got, err := store.GetByID(message.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reactions, 2)

	require.NoError(t, store.RemoveReaction(message.ID, bob.ID, "❤️"))
	got, err = store.GetByID(message.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reactions, 1)
	assert.Equal(t, alice.ID, got.Reactions[0].UserID)
}
