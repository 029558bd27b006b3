package models

import "time"

// GroupRole defines a member's role in a group.
type GroupRole string

const (
	// GroupRoleOwner is the group creator. Owners are also moderators.
	GroupRoleOwner GroupRole = "owner"
	// GroupRoleMod can edit the group and remove members.
	GroupRoleMod GroupRole = "mod"
	// GroupRoleMember is the default role after a successful join.
	GroupRoleMember GroupRole = "member"
)

// IsModerator reports whether the role carries moderation rights.
func (r GroupRole) IsModerator() bool {
	return r == GroupRoleOwner || r == GroupRoleMod
}

// GroupMembership maps users to groups and tracks role.
type GroupMembership struct {
	GroupID   uint      `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      GroupRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (GroupMembership) TableName() string {
	return "group_memberships"
}

// ApplyMemberships fills the projected ModeratorIDs and MemberIDs of g.
func (g *Group) ApplyMemberships(memberships []GroupMembership) {
	g.MemberIDs = make([]uint, 0, len(memberships))
	g.ModeratorIDs = make([]uint, 0, 1)
	for _, m := range memberships {
		if m.GroupID != g.ID {
			continue
		}
		g.MemberIDs = append(g.MemberIDs, m.UserID)
		if m.Role.IsModerator() {
			g.ModeratorIDs = append(g.ModeratorIDs, m.UserID)
		}
	}
}
