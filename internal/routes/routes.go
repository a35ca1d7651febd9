package routes

import (
	"social-app-server/internal/chat"
	"social-app-server/internal/config"
	"social-app-server/internal/handlers"
	"social-app-server/internal/middleware"
	"social-app-server/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, chatService *chat.Service) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	messageHandler := handlers.NewMessageHandler(chatService)
	wsHandler := ws.NewHandler(chatService, chatService.Registry, cfg)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// The live channel authenticates during the handshake (header or token
	// query param), not through the REST middleware.
	router.GET("/api/v1/ws", wsHandler.Serve)

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User directory routes
		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/lookup", userHandler.Lookup)
			userRoutes.GET("/:id", userHandler.GetUserByID)
		}

		// Messaging routes
		messageRoutes := private.Group("/messages")
		{
			// History with one counterpart (by id or username), paginated
			messageRoutes.GET("", messageHandler.GetHistory)

			// Inbox: one summary per counterpart
			messageRoutes.GET("/conversations", messageHandler.GetConversations)

			// REST-originated send; emits the same live events as the ws path
			messageRoutes.POST("/send", messageHandler.SendMessage)

			// Bulk mark-as-read for one counterpart
			messageRoutes.PATCH("/read", messageHandler.MarkConversationRead)

			// Edit and soft-delete (sender-only, enforced in the service)
			messageRoutes.PATCH("/:messageId", messageHandler.EditMessage)
			messageRoutes.DELETE("/:messageId", messageHandler.DeleteMessage)

			// Reactions
			messageRoutes.POST("/:messageId/reactions", messageHandler.AddReaction)
			messageRoutes.DELETE("/:messageId/reactions", messageHandler.RemoveReaction)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
