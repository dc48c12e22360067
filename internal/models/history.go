package models

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// History is the execution ledger entry of an action.
type History struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	JobID            uint              `gorm:"index;not null" json:"job_id"`
	ActionID         string            `gorm:"index;not null" json:"action_id"`
	Status           Status            `gorm:"type:text;index;not null" json:"status"`
	TriggerType      TriggerType       `gorm:"not null" json:"trigger_type"`
	Operator         string            `json:"operator"`
	Illustrate       string            `json:"illustrate"`
	HostGroupID      uint              `json:"host_group_id"`
	Properties       datatypes.JSONMap `gorm:"type:json" json:"properties,omitempty"`
	StatisticEndTime *time.Time        `json:"statistic_end_time,omitempty"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          *time.Time        `json:"end_time,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
