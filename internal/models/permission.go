package models

import "time"

// TargetKind is the kind of entity a permission entry or an
// authorization check refers to.
type TargetKind string

const (
	TargetJob   TargetKind = "job"
	TargetGroup TargetKind = "group"
)

type Permission struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TargetID  uint       `gorm:"index:idx_permission_target;not null" json:"target_id"`
	Type      TargetKind `gorm:"type:text;index:idx_permission_target;not null" json:"type"`
	UID       string     `gorm:"index;not null" json:"uid"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Permissions []*Permission
