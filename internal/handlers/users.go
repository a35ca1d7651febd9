package handlers

import (
	"errors"

	"social-app-server/internal/models"
	"social-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler is the user directory: it resolves usernames to user ids and
// back, and serves sanitized profiles for sender display fields.
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// Lookup resolves a username to a user.
func (h *UserHandler) Lookup(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		utils.BadRequest(c, "username query parameter is required")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "User found", user.Sanitize())
}

// GetUserByID fetches a user's sanitized profile by id.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "User fetched successfully", user.Sanitize())
}
