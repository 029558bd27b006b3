// Package models contains data structures for the application's domain models.
package models

import "time"

// User is a member profile. Username never changes after signup.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:32;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `gorm:"type:text" json:"bio"`
	GroupIDs  []uint    `gorm:"-" json:"group_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
