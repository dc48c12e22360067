package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduleType distinguishes cron driven jobs from jobs that
// run once their upstream dependencies complete.
type ScheduleType int

const (
	ScheduleTypeIndependent ScheduleType = 0
	ScheduleTypeDependent   ScheduleType = 1
)

type Job struct {
	ID             uint                      `gorm:"primaryKey" json:"id"`
	GroupID        uint                      `gorm:"index;not null" json:"group_id"`
	Name           string                    `gorm:"not null" json:"name"`
	Description    string                    `json:"description"`
	Owner          string                    `gorm:"index" json:"owner"`
	Auto           bool                      `gorm:"not null;default:false" json:"auto"`
	CronExpression string                    `json:"cron_expression"`
	Script         string                    `gorm:"type:text" json:"script"`
	Configs        datatypes.JSONMap         `gorm:"type:json" json:"configs,omitempty"`
	Dependencies   datatypes.JSONSlice[uint] `gorm:"type:json" json:"dependencies,omitempty"`
	ScheduleType   ScheduleType              `gorm:"not null;default:0" json:"schedule_type"`
	HostGroupID    uint                      `json:"host_group_id"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// DependsOn reports whether id appears in the job's direct
// dependency list.
func (j *Job) DependsOn(id uint) bool {
	for _, dep := range j.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

type Jobs []*Job

// IDs returns the job ids in slice order.
func (js Jobs) IDs() []uint {
	ids := make([]uint, 0, len(js))
	for _, j := range js {
		ids = append(ids, j.ID)
	}
	return ids
}
