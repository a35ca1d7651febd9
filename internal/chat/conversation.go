package chat

// ConversationID derives the canonical conversation key for a pair of users.
// The two ids are joined in lexicographic order, so the key is identical
// regardless of which side initiated: ConversationID(a, b) == ConversationID(b, a).
// Every producer of conversation keys in the codebase must go through this
// function; joining ids in call-order would fragment a conversation into two
// keys.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Counterpart returns the other participant of a message relative to userID.
func Counterpart(senderID, recipientID, userID string) string {
	if senderID == userID {
		return recipientID
	}
	return senderID
}
