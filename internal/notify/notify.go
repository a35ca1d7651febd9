package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Notifier records messaging events with the notification collaborator. Calls
// must never block or fail the messaging core; a send's success is defined
// solely by the store write.
type Notifier interface {
	MessageSent(senderID, recipientID, messageID string)
}

// Noop discards all events. Used when no notification service is configured
// and in tests.
type Noop struct{}

func (Noop) MessageSent(senderID, recipientID, messageID string) {}

// HTTPNotifier posts events to an external notification service. Each event is
// dispatched from its own goroutine with a short client timeout; failures are
// logged and dropped.
type HTTPNotifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPNotifier creates a notifier for the given endpoint. An empty URL
// yields a Noop.
func NewHTTPNotifier(url string) Notifier {
	if url == "" {
		return Noop{}
	}
	return &HTTPNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

type messageEvent struct {
	Type        string `json:"type"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	MessageID   string `json:"messageId"`
}

// MessageSent records a new-message event, fire-and-forget.
func (n *HTTPNotifier) MessageSent(senderID, recipientID, messageID string) {
	event := messageEvent{
		Type:        "message",
		SenderID:    senderID,
		RecipientID: recipientID,
		MessageID:   messageID,
	}
	go n.post(event)
}

func (n *HTTPNotifier) post(event messageEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: failed to encode event: %v", err)
		return
	}
	resp, err := n.Client.Post(n.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: failed to record event: %v", err)
		return
	}
	resp.Body.Close()
}
