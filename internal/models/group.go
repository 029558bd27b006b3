package models

import "time"

// Group is a book club. Joining requires answering ModerationQuestion.
type Group struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Title              string    `gorm:"size:200;not null;index" json:"title"`
	Author             string    `gorm:"size:200;not null;index" json:"author"`
	CoverURL           string    `json:"cover_url"`
	Description        string    `gorm:"type:text" json:"description"`
	OwnerID            uint      `gorm:"not null;index" json:"owner_id"`
	Owner              *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	ModerationQuestion string    `gorm:"type:text;not null" json:"moderation_question"`
	ModerationAnswer   string    `gorm:"type:text;not null" json:"-"`
	ModeratorIDs       []uint    `gorm:"-" json:"moderator_ids"`
	MemberIDs          []uint    `gorm:"-" json:"member_ids"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Group) TableName() string {
	return "groups"
}
