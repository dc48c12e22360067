package models

import (
	"time"

	"gorm.io/datatypes"
)

// RootGroupID is the parent sentinel of top level groups.
const RootGroupID uint = 0

type Group struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Parent    uint              `gorm:"index;not null;default:0" json:"parent"`
	Name      string            `gorm:"not null" json:"name"`
	Owner     string            `gorm:"index" json:"owner"`
	Configs   datatypes.JSONMap `gorm:"type:json" json:"configs,omitempty"`
	Existed   bool              `gorm:"not null" json:"existed"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Groups []*Group

type HostGroup struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
}
