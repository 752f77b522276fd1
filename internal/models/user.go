package models

import "time"

// UserAuth is a dashboard login. Only admins may trigger manual syncs or
// clear the cache.
type UserAuth struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `gorm:"default:user" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (UserAuth) TableName() string { return "user_auth" }
