// Package repository holds the persistence collaborators of the
// schedule center. Consumers depend on the narrow interfaces they
// need; Store implements all of them on top of gorm.
package repository

import (
	"context"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("record not found")

type Jobs interface {
	FindJob(ctx context.Context, id uint) (*models.Job, error)
	JobsByGroup(ctx context.Context, groupID uint) (models.Jobs, error)
	UpstreamJobs(ctx context.Context, id uint) (models.Jobs, error)
	DownstreamJobs(ctx context.Context, id uint) (models.Jobs, error)
	AllJobs(ctx context.Context) (models.Jobs, error)
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	SetAuto(ctx context.Context, id uint, auto bool) error
	DeleteJob(ctx context.Context, id uint) error
}

type Groups interface {
	FindGroup(ctx context.Context, id uint) (*models.Group, error)
	ChildGroups(ctx context.Context, parent uint) (models.Groups, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id uint) error
}

type Permissions interface {
	FindPermission(ctx context.Context, targetID uint, kind models.TargetKind, uid string) (*models.Permission, error)
	PermissionsByTarget(ctx context.Context, targetID uint, kind models.TargetKind) (models.Permissions, error)
	ReplacePermissions(ctx context.Context, targetID uint, kind models.TargetKind, uids []string) error
}

type Actions interface {
	FindAction(ctx context.Context, id string) (*models.Action, error)
	LatestAction(ctx context.Context, jobID uint) (*models.Action, error)
	ActionIDsByJob(ctx context.Context, jobID uint) ([]string, error)
	UpdateAction(ctx context.Context, action *models.Action) error
}

type Histories interface {
	FindHistory(ctx context.Context, id uint) (*models.History, error)
	CreateHistory(ctx context.Context, history *models.History) error
	UpdateHistoryStatus(ctx context.Context, id uint, status models.Status) error
}

type HostGroups interface {
	FindHostGroup(ctx context.Context, id uint) (*models.HostGroup, error)
	ListHostGroups(ctx context.Context) ([]*models.HostGroup, error)
}

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
