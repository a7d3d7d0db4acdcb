package models

import (
	"time"
)

// User represents an author or reader account.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	FirstName string     `gorm:"size:100" json:"first_name,omitempty"`
	LastName  string     `gorm:"size:100" json:"last_name,omitempty"`
	Bio       string     `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	IsAdmin   bool       `gorm:"not null;default:false" json:"is_admin"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UserSummary is the author block embedded in post and comment responses.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Summary returns the public subset of the user's fields.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}
