package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
)

// TriggerType records what caused a run to be dispatched.
type TriggerType int

const (
	TriggerTypeSchedule      TriggerType = 1
	TriggerTypeManual        TriggerType = 2
	TriggerTypeManualRecover TriggerType = 3
)

func (t TriggerType) String() string {
	switch t {
	case TriggerTypeSchedule:
		return "schedule"
	case TriggerTypeManual:
		return "manual"
	case TriggerTypeManualRecover:
		return "manual_recover"
	default:
		return "unknown"
	}
}

// actionDateLayout is the logical date prefix of an action id.
const actionDateLayout = "200601021504"

// Action is one instantiation of a job for a logical date. Its
// script and configs are copies taken when it was dispatched.
type Action struct {
	ID               string            `gorm:"primaryKey" json:"id"`
	JobID            uint              `gorm:"index;not null" json:"job_id"`
	Script           string            `gorm:"type:text" json:"script"`
	Configs          datatypes.JSONMap `gorm:"type:json" json:"configs,omitempty"`
	TriggerType      TriggerType       `gorm:"not null;default:1" json:"trigger_type"`
	HostGroupID      uint              `json:"host_group_id"`
	HistoryID        uint              `json:"history_id"`
	StatisticEndTime *time.Time        `json:"statistic_end_time,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewActionID builds an action id from the logical date and the
// job id, which occupies the last four digits.
func NewActionID(date time.Time, jobID uint) string {
	return fmt.Sprintf("%s%04d", date.Format(actionDateLayout), jobID%10000)
}

// JobIDFromAction extracts the job id suffix of an action id.
func JobIDFromAction(actionID string) (uint, error) {
	if len(actionID) < 4 {
		return 0, errors.Errorf("action id %q is too short", actionID)
	}

	id, err := strconv.ParseUint(actionID[len(actionID)-4:], 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "action id %q has no job suffix", actionID)
	}

	return uint(id), nil
}
