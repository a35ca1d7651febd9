package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"social-app-server/internal/chat"
	"social-app-server/internal/config"
	"social-app-server/internal/models"
	"social-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler owns the live-channel endpoint: it authenticates the handshake,
// registers the connection in the presence registry and routes inbound events
// to the chat service.
type Handler struct {
	Service  *chat.Service
	Registry *chat.Registry
	Cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler.
func NewHandler(service *chat.Service, registry *chat.Registry, cfg *config.Config) *Handler {
	return &Handler{
		Service:  service,
		Registry: registry,
		Cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == cfg.Origin
			},
		},
	}
}

// Serve upgrades the request to a websocket connection. The bearer credential
// comes from the Authorization header or, for browser clients that cannot set
// headers on websocket handshakes, a token query parameter.
func (h *Handler) Serve(c *gin.Context) {
	token := ""
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		utils.Unauthorized(c, "Authentication credential required")
		return
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid token: "+err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	idle := time.Duration(h.Cfg.WSIdleSeconds) * time.Second
	writeTimeout := time.Duration(h.Cfg.WSWriteTimeoutSeconds) * time.Second
	client := newClient(claims.UserID, conn, idle, writeTimeout)

	h.register(client)
	go client.writePump()
	client.readPump(h)
	h.unregister(client)
}

// register places the client in the presence registry. A reconnect replaces
// the previous handle silently; user_online is broadcast only on a true
// offline-to-online transition so peers never see duplicate online events.
func (h *Handler) register(client *Client) {
	reconnect := h.Registry.Join(client.userID, client)
	log.Printf("ws: user %s connected (reconnect=%v)", client.userID, reconnect)
	if !reconnect {
		h.Registry.Broadcast(chat.EventUserOnline, chat.PresencePayload{UserID: client.userID})
	}
}

// unregister removes the client. The registry's handle guard means a stale
// disconnect from a replaced connection does not evict the replacement, and
// user_offline fires only when the entry was actually removed.
func (h *Handler) unregister(client *Client) {
	client.close()
	if h.Registry.Leave(client.userID, client) {
		log.Printf("ws: user %s disconnected", client.userID)
		h.Registry.Broadcast(chat.EventUserOffline, chat.PresencePayload{UserID: client.userID})
	}
}

type sendMessagePayload struct {
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
	Kind           string `json:"kind"`
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentName string `json:"attachmentName"`
	CorrelationID  string `json:"correlationId"`
}

type typingPayload struct {
	RecipientID string `json:"recipientId"`
}

type messageReadPayload struct {
	SenderID  string `json:"senderId"`
	MessageID string `json:"messageId"`
}

// dispatch routes one inbound event to the shared chat service.
func (h *Handler) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case chat.EventJoin:
		// The handshake already registered the connection; a join event is
		// an idempotent re-register for clients that emit it anyway.
		h.Registry.Join(client.userID, client)

	case chat.EventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			client.Send(chat.EventMessageError, chat.MessageErrorPayload{Error: "malformed send_message payload"})
			return
		}
		h.handleSend(client, payload)

	case chat.EventTypingStart, chat.EventTypingStop:
		var payload typingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.RecipientID == "" {
			return
		}
		h.Service.Typing(client.userID, payload.RecipientID, env.Event == chat.EventTypingStart)

	case chat.EventMessageRead:
		var payload messageReadPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.MessageID == "" {
			return
		}
		h.Service.ReadReceipt(client.userID, payload.SenderID, payload.MessageID)

	default:
		log.Printf("ws: unknown event %q from user %s", env.Event, client.userID)
	}
}

// handleSend runs the delivery protocol for a live-channel send. Failures are
// reported to the sender tied to their correlation id, never silently dropped;
// the ack is sent regardless of whether the recipient was reachable.
func (h *Handler) handleSend(client *Client, payload sendMessagePayload) {
	message, _, err := h.Service.SendMessage(chat.SendInput{
		SenderID:       client.userID,
		RecipientID:    payload.RecipientID,
		Content:        payload.Content,
		Kind:           models.MessageKind(payload.Kind),
		AttachmentURL:  payload.AttachmentURL,
		AttachmentName: payload.AttachmentName,
	})
	if err != nil {
		client.Send(chat.EventMessageError, chat.MessageErrorPayload{
			CorrelationID: payload.CorrelationID,
			Error:         err.Error(),
		})
		return
	}

	client.Send(chat.EventMessageSent, chat.MessageSentPayload{
		CorrelationID: payload.CorrelationID,
		MessageID:     message.ID,
		Status:        "sent",
		Timestamp:     message.CreatedAt,
	})
}
