package chat

import (
	"testing"
	"time"

	"social-app-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationsSingleCounterpart(t *testing.T) {
	svc, db := newTestService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	// Three messages exchanged; two addressed to alice, both unread.
	_, _, err := svc.SendMessage(SendInput{SenderID: alice.ID, RecipientID: bob.ID, Content: "first"})
	require.NoError(t, err)
	_, _, err = svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "second"})
	require.NoError(t, err)
	third, _, err := svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "third"})
	require.NoError(t, err)
	// Force a strictly later timestamp for the last message.
	require.NoError(t, db.Model(third).Update("created_at", time.Now().Add(time.Minute)).Error)

	summaries, err := svc.Conversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "exactly one summary per counterpart")

	summary := summaries[0]
	assert.Equal(t, bob.ID, summary.Counterpart.ID)
	assert.Equal(t, "third", summary.LastMessage.Content)
	assert.Equal(t, int64(2), summary.UnreadCount)
}

func TestConversationsExcludesDeleted(t *testing.T) {
	svc, db := newTestService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	kept, _, err := svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "kept"})
	require.NoError(t, err)
	doomed, _, err := svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "doomed"})
	require.NoError(t, err)
	require.NoError(t, db.Model(doomed).Update("created_at", time.Now().Add(time.Minute)).Error)

	_, err = svc.DeleteMessage(bob.ID, doomed.ID)
	require.NoError(t, err)

	summaries, err := svc.Conversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	// The deleted message is excluded from both the last-message pick and the
	// unread count.
	assert.Equal(t, kept.ID, summaries[0].LastMessage.ID)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
}

func TestConversationsAllMessagesDeleted(t *testing.T) {
	svc, db := newTestService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	only, _, err := svc.SendMessage(SendInput{SenderID: alice.ID, RecipientID: bob.ID, Content: "gone"})
	require.NoError(t, err)
	_, err = svc.DeleteMessage(alice.ID, only.ID)
	require.NoError(t, err)

	summaries, err := svc.Conversations(bob.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestConversationsOrderedByLastMessage(t *testing.T) {
	svc, db := newTestService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	older, _, err := svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "from bob"})
	require.NoError(t, err)
	newer, _, err := svc.SendMessage(SendInput{SenderID: carol.ID, RecipientID: alice.ID, Content: "from carol"})
	require.NoError(t, err)

	base := time.Now()
	require.NoError(t, db.Model(older).Update("created_at", base.Add(-time.Hour)).Error)
	require.NoError(t, db.Model(newer).Update("created_at", base).Error)

	summaries, err := svc.Conversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, carol.ID, summaries[0].Counterpart.ID, "newest last message first")
	assert.Equal(t, bob.ID, summaries[1].Counterpart.ID)
}

func TestConversationsReadMessagesNotCounted(t *testing.T) {
	svc, db := newTestService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, _, err := svc.SendMessage(SendInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "read me"})
	require.NoError(t, err)
	_, err = svc.MarkConversationRead(alice.ID, bob.ID)
	require.NoError(t, err)

	// A message alice sent does not count toward her own unread.
	_, _, err = svc.SendMessage(SendInput{SenderID: alice.ID, RecipientID: bob.ID, Content: "sent by me"})
	require.NoError(t, err)

	summaries, err := svc.Conversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(0), summaries[0].UnreadCount)

	var check models.Message
	require.NoError(t, db.First(&check, "sender_id = ?", bob.ID).Error)
	assert.True(t, check.IsRead)
}
