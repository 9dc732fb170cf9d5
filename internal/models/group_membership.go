package models

import "time"

// GroupMembershipRole defines a member's role in a group.
type GroupMembershipRole string

const (
	// GroupMembershipRoleOwner is the group owner role.
	GroupMembershipRoleOwner GroupMembershipRole = "owner"
	// GroupMembershipRoleMember is the default member role.
	GroupMembershipRoleMember GroupMembershipRole = "member"
)

// GroupMembership maps users to groups. RemovedAt is set when the group is
// deleted for a violation.
type GroupMembership struct {
	GroupID   uint                `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID    uint                `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Role      GroupMembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	RemovedAt *time.Time          `json:"removed_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (GroupMembership) TableName() string {
	return "group_memberships"
}
