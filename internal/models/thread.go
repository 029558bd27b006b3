package models

import "time"

// Thread is a discussion topic inside a group.
// LikeCount and ReplyCount are only ever changed with atomic increments.
type Thread struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GroupID    uint      `gorm:"not null;index" json:"group_id"`
	Group      *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	AuthorName string    `gorm:"size:32;not null" json:"author_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	LikeCount  int       `gorm:"not null;default:0" json:"like_count"`
	ReplyCount int       `gorm:"not null;default:0" json:"reply_count"`
	Liked      bool      `gorm:"-" json:"liked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Thread) TableName() string {
	return "threads"
}

// Reply is a response inside a thread.
type Reply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	Thread    *Thread   `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Username  string    `gorm:"size:32;not null" json:"username"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Reply) TableName() string {
	return "replies"
}

// Like represents a user's like on a thread.
// The combination of UserID and ThreadID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_thread_user" json:"user_id"`
	ThreadID  uint      `gorm:"not null;uniqueIndex:idx_like_thread_user" json:"thread_id"`
	Thread    *Thread   `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Like) TableName() string {
	return "likes"
}
