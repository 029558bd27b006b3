package models

import "time"

// Post is an entry in the global feed.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	AuthorName string    `gorm:"size:32;not null" json:"author_name"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}
