package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"social-app-server/internal/chat"
	"social-app-server/internal/config"
	"social-app-server/internal/middleware"
	"social-app-server/internal/models"
	"social-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingConn struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingConn) Send(event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingConn) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	cfg     *config.Config
	service *chat.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}

	service := chat.NewService(db, chat.NewRegistry(), nil)

	router := gin.New()
	messageHandler := NewMessageHandler(service)
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		private.GET("/messages", messageHandler.GetHistory)
		private.GET("/messages/conversations", messageHandler.GetConversations)
		private.POST("/messages/send", messageHandler.SendMessage)
		private.PATCH("/messages/read", messageHandler.MarkConversationRead)
		private.PATCH("/messages/:messageId", messageHandler.EditMessage)
		private.DELETE("/messages/:messageId", messageHandler.DeleteMessage)
		private.POST("/messages/:messageId/reactions", messageHandler.AddReaction)
		private.DELETE("/messages/:messageId/reactions", messageHandler.RemoveReaction)
	}

	return &testEnv{router: router, db: db, cfg: cfg, service: service}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com", FullName: username}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := utils.GenerateTokens(user, e.cfg)
	require.NoError(t, err)
	return access
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, utils.ResponseData) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp utils.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestMessagesRequireCredential(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/messages/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestSendAndFetchHistory(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	aliceToken := env.tokenFor(t, alice)
	bobToken := env.tokenFor(t, bob)

	w, resp := env.do(t, http.MethodPost, "/api/v1/messages/send", aliceToken, gin.H{
		"recipientId": bob.ID,
		"content":     "hello over REST",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)

	// History resolves the counterpart by username as well as by id.
	w, resp = env.do(t, http.MethodGet, "/api/v1/messages?withUser=alice", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	messages := data["messages"].([]interface{})
	require.Len(t, messages, 1)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "hello over REST", first["content"])
	assert.Equal(t, false, first["isRead"])
}

func TestRESTSendEmitsLiveEvent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	bobConn := &recordingConn{}
	env.service.Registry.Join(bob.ID, bobConn)

	w, resp := env.do(t, http.MethodPost, "/api/v1/messages/send", env.tokenFor(t, alice), gin.H{
		"recipientId": bob.ID,
		"content":     "live from REST",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// A client listening only on the live channel sees the REST-originated send.
	assert.Equal(t, 1, bobConn.count(chat.EventReceiveMessage))

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["delivered"])
}

func TestEditAuthorizationDistinctStatuses(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	aliceToken := env.tokenFor(t, alice)
	bobToken := env.tokenFor(t, bob)

	_, resp := env.do(t, http.MethodPost, "/api/v1/messages/send", aliceToken, gin.H{
		"recipientId": bob.ID,
		"content":     "mine",
	})
	data := resp.Data.(map[string]interface{})
	messageID := data["message"].(map[string]interface{})["id"].(string)

	// Wrong owner: 403, distinct from 401 and 404.
	w, resp := env.do(t, http.MethodPatch, "/api/v1/messages/"+messageID, bobToken, gin.H{"content": "not yours"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, resp.Success)

	// Unknown id: 404.
	w, _ = env.do(t, http.MethodPatch, "/api/v1/messages/"+uuid.New().String(), aliceToken, gin.H{"content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Owner: 200 and the text actually changes.
	w, resp = env.do(t, http.MethodPatch, "/api/v1/messages/"+messageID, aliceToken, gin.H{"content": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	edited := resp.Data.(map[string]interface{})
	assert.Equal(t, "edited", edited["content"])
	assert.Equal(t, true, edited["isEdited"])
}

func TestDeleteThenHistoryExcludes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	aliceToken := env.tokenFor(t, alice)

	_, resp := env.do(t, http.MethodPost, "/api/v1/messages/send", aliceToken, gin.H{
		"recipientId": bob.ID,
		"content":     "disappearing",
	})
	data := resp.Data.(map[string]interface{})
	messageID := data["message"].(map[string]interface{})["id"].(string)

	w, _ := env.do(t, http.MethodDelete, "/api/v1/messages/"+messageID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, resp = env.do(t, http.MethodGet, "/api/v1/messages?withUser="+bob.ID, aliceToken, nil)
	histData := resp.Data.(map[string]interface{})
	assert.Empty(t, histData["messages"])
}

func TestMarkReadAndConversations(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	bobToken := env.tokenFor(t, bob)

	for i := 0; i < 2; i++ {
		_, _, err := env.service.SendMessage(chat.SendInput{
			SenderID:    alice.ID,
			RecipientID: bob.ID,
			Content:     fmt.Sprintf("note %d", i),
		})
		require.NoError(t, err)
	}

	_, resp := env.do(t, http.MethodGet, "/api/v1/messages/conversations", bobToken, nil)
	summaries := resp.Data.([]interface{})
	require.Len(t, summaries, 1)
	summary := summaries[0].(map[string]interface{})
	assert.Equal(t, float64(2), summary["unreadCount"])

	w, resp := env.do(t, http.MethodPatch, "/api/v1/messages/read", bobToken, gin.H{"counterpartId": alice.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["updated"])

	_, resp = env.do(t, http.MethodGet, "/api/v1/messages/conversations", bobToken, nil)
	summary = resp.Data.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(0), summary["unreadCount"])
}

func TestReactionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	bobToken := env.tokenFor(t, bob)

	message, _, err := env.service.SendMessage(chat.SendInput{
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Content:     "react here",
	})
	require.NoError(t, err)

	w, _ := env.do(t, http.MethodPost, "/api/v1/messages/"+message.ID+"/reactions", bobToken, gin.H{"emoji": "🔥"})
	require.Equal(t, http.StatusOK, w.Code)

	_, resp := env.do(t, http.MethodGet, "/api/v1/messages?withUser="+alice.ID, bobToken, nil)
	data := resp.Data.(map[string]interface{})
	first := data["messages"].([]interface{})[0].(map[string]interface{})
	reactions := first["reactions"].([]interface{})
	require.Len(t, reactions, 1)

	w, _ = env.do(t, http.MethodDelete, "/api/v1/messages/"+message.ID+"/reactions?emoji=🔥", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
