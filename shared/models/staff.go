// shared/models/staff.go
package models

import "time"

// StaffProfile represents a staff member's persisted profile. It carries no
// enforcement logic; rows are created on a staff member's first interaction
// and only their last-login timestamp changes afterwards.
type StaffProfile struct {
	UUID        string     `bson:"_id" json:"uuid"`
	Name        string     `bson:"name" json:"name"`
	Rank        string     `bson:"staff_rank" json:"rank"`
	Tier        int        `bson:"tier" json:"tier"`
	CreatedAt   *time.Time `bson:"created_at,omitempty" json:"createdAt"`
	LastLoginAt *time.Time `bson:"last_login,omitempty" json:"lastLoginAt"`
}
