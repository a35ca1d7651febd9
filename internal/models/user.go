package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User represents a user in the system
type User struct {
	BaseModel
	Username     string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FullName     string `gorm:"size:100" json:"fullName"`
	Bio          string `gorm:"size:500" json:"bio,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsVerified   bool   `gorm:"default:false" json:"isVerified"`

	// Relations (not always preloaded)
	RefreshTokens    []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	SentMessages     []Message      `gorm:"foreignKey:SenderID" json:"-"`
	ReceivedMessages []Message      `gorm:"foreignKey:RecipientID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	Bio          string `json:"bio,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsVerified   bool   `json:"isVerified"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		IsVerified:   u.IsVerified,
	}
}
