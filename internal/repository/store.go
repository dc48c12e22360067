package repository

import (
	"context"
	"sort"
	"time"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store implements every repository interface with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	if db == nil {
		panic("repository store requires database")
	}
	return &Store{db: db}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

// jobs

func (s *Store) FindJob(ctx context.Context, id uint) (*models.Job, error) {
	job := &models.Job{}
	if err := s.q(ctx).First(job, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "job %d", id)
	}
	return job, nil
}

func (s *Store) JobsByGroup(ctx context.Context, groupID uint) (models.Jobs, error) {
	jobs := make(models.Jobs, 0)
	if err := s.q(ctx).Where("group_id = ?", groupID).Order("id").Find(&jobs).Error; err != nil {
		return nil, errors.Wrapf(err, "jobs of group %d", groupID)
	}
	return jobs, nil
}

// UpstreamJobs returns the jobs named in the dependency list of id,
// in dependency-list order. Ids that no longer resolve are skipped.
func (s *Store) UpstreamJobs(ctx context.Context, id uint) (models.Jobs, error) {
	job, err := s.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(job.Dependencies) == 0 {
		return models.Jobs{}, nil
	}

	found := make(models.Jobs, 0, len(job.Dependencies))
	if err := s.q(ctx).Where("id IN ?", []uint(job.Dependencies)).Find(&found).Error; err != nil {
		return nil, errors.Wrapf(err, "upstream jobs of %d", id)
	}

	byID := make(map[uint]*models.Job, len(found))
	for _, j := range found {
		byID[j.ID] = j
	}

	upstream := make(models.Jobs, 0, len(found))
	for _, dep := range job.Dependencies {
		if j, ok := byID[dep]; ok {
			upstream = append(upstream, j)
		}
	}
	return upstream, nil
}

// DownstreamJobs returns every job whose dependency list contains
// id, ordered by job id.
func (s *Store) DownstreamJobs(ctx context.Context, id uint) (models.Jobs, error) {
	all, err := s.AllJobs(ctx)
	if err != nil {
		return nil, err
	}

	downstream := make(models.Jobs, 0)
	for _, j := range all {
		if j.ID != id && j.DependsOn(id) {
			downstream = append(downstream, j)
		}
	}
	return downstream, nil
}

func (s *Store) AllJobs(ctx context.Context) (models.Jobs, error) {
	jobs := make(models.Jobs, 0)
	if err := s.q(ctx).Order("id").Find(&jobs).Error; err != nil {
		return nil, errors.Wrap(err, "all jobs")
	}
	return jobs, nil
}

func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	return errors.Wrap(s.q(ctx).Create(job).Error, "create job")
}

func (s *Store) UpdateJob(ctx context.Context, job *models.Job) error {
	result := s.q(ctx).Model(&models.Job{ID: job.ID}).Select(
		"name", "description", "cron_expression", "script", "configs",
		"dependencies", "schedule_type", "host_group_id",
	).Updates(job)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update job %d", job.ID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "job %d", job.ID)
	}
	return nil
}

func (s *Store) SetAuto(ctx context.Context, id uint, auto bool) error {
	result := s.q(ctx).Model(&models.Job{}).Where("id = ?", id).Update("auto", auto)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "switch job %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "job %d", id)
	}
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id uint) error {
	result := s.q(ctx).Delete(&models.Job{}, id)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "delete job %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "job %d", id)
	}
	return nil
}

// groups

// FindGroup returns an existing group; groups whose existence flag
// was cleared by DeleteGroup are reported as not found.
func (s *Store) FindGroup(ctx context.Context, id uint) (*models.Group, error) {
	group := &models.Group{}
	if err := s.q(ctx).First(group, "id = ? AND existed = ?", id, true).Error; err != nil {
		return nil, notFound(err, "group %d", id)
	}
	return group, nil
}

func (s *Store) ChildGroups(ctx context.Context, parent uint) (models.Groups, error) {
	groups := make(models.Groups, 0)
	if err := s.q(ctx).Where("parent = ? AND existed = ?", parent, true).Order("id").Find(&groups).Error; err != nil {
		return nil, errors.Wrapf(err, "children of group %d", parent)
	}
	return groups, nil
}

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	group.Existed = true
	return errors.Wrap(s.q(ctx).Create(group).Error, "create group")
}

func (s *Store) UpdateGroup(ctx context.Context, group *models.Group) error {
	result := s.q(ctx).Model(&models.Group{}).
		Where("id = ? AND existed = ?", group.ID, true).
		Select("name", "configs").
		Updates(group)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update group %d", group.ID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "group %d", group.ID)
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id uint) error {
	result := s.q(ctx).Model(&models.Group{}).
		Where("id = ? AND existed = ?", id, true).
		Update("existed", false)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "delete group %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "group %d", id)
	}
	return nil
}

// permissions

func (s *Store) FindPermission(ctx context.Context, targetID uint, kind models.TargetKind, uid string) (*models.Permission, error) {
	perm := &models.Permission{}
	err := s.q(ctx).
		Where("target_id = ? AND type = ? AND uid = ?", targetID, kind, uid).
		First(perm).Error
	if err != nil {
		return nil, notFound(err, "%s %d permission for %s", kind, targetID, uid)
	}
	return perm, nil
}

func (s *Store) PermissionsByTarget(ctx context.Context, targetID uint, kind models.TargetKind) (models.Permissions, error) {
	perms := make(models.Permissions, 0)
	err := s.q(ctx).
		Where("target_id = ? AND type = ?", targetID, kind).
		Order("uid").
		Find(&perms).Error
	if err != nil {
		return nil, errors.Wrapf(err, "%s %d permissions", kind, targetID)
	}
	return perms, nil
}

// ReplacePermissions swaps the full entry set of a target in one
// transaction. Duplicate and blank uids are dropped.
func (s *Store) ReplacePermissions(ctx context.Context, targetID uint, kind models.TargetKind, uids []string) error {
	seen := make(map[string]struct{}, len(uids))
	unique := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		unique = append(unique, uid)
	}
	sort.Strings(unique)

	now := time.Now().UTC()
	return s.q(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_id = ? AND type = ?", targetID, kind).Delete(&models.Permission{}).Error; err != nil {
			return errors.Wrapf(err, "clear %s %d permissions", kind, targetID)
		}
		if len(unique) == 0 {
			return nil
		}

		perms := make(models.Permissions, 0, len(unique))
		for _, uid := range unique {
			perms = append(perms, &models.Permission{
				TargetID:  targetID,
				Type:      kind,
				UID:       uid,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return errors.Wrapf(tx.Create(&perms).Error, "insert %s %d permissions", kind, targetID)
	})
}

// actions

func (s *Store) FindAction(ctx context.Context, id string) (*models.Action, error) {
	action := &models.Action{}
	if err := s.q(ctx).First(action, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "action %s", id)
	}
	return action, nil
}

func (s *Store) LatestAction(ctx context.Context, jobID uint) (*models.Action, error) {
	action := &models.Action{}
	if err := s.q(ctx).Where("job_id = ?", jobID).Order("id DESC").First(action).Error; err != nil {
		return nil, notFound(err, "latest action of job %d", jobID)
	}
	return action, nil
}

// ActionIDsByJob lists the action versions of a job, newest first.
func (s *Store) ActionIDsByJob(ctx context.Context, jobID uint) ([]string, error) {
	ids := make([]string, 0)
	err := s.q(ctx).Model(&models.Action{}).
		Where("job_id = ?", jobID).
		Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrapf(err, "actions of job %d", jobID)
	}
	return ids, nil
}

func (s *Store) UpdateAction(ctx context.Context, action *models.Action) error {
	result := s.q(ctx).Model(&models.Action{ID: action.ID}).
		Select("script", "configs", "trigger_type", "history_id", "host_group_id").
		Updates(action)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update action %s", action.ID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "action %s", action.ID)
	}
	return nil
}

// histories

func (s *Store) FindHistory(ctx context.Context, id uint) (*models.History, error) {
	history := &models.History{}
	if err := s.q(ctx).First(history, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "history %d", id)
	}
	return history, nil
}

func (s *Store) CreateHistory(ctx context.Context, history *models.History) error {
	if history.StartTime.IsZero() {
		history.StartTime = time.Now().UTC()
	}
	return errors.Wrap(s.q(ctx).Create(history).Error, "create history")
}

// UpdateHistoryStatus records a status change; terminal statuses
// also stamp the end time.
func (s *Store) UpdateHistoryStatus(ctx context.Context, id uint, status models.Status) error {
	updates := map[string]interface{}{"status": status}
	if status != models.StatusRunning {
		updates["end_time"] = time.Now().UTC()
	}

	result := s.q(ctx).Model(&models.History{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update history %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "history %d", id)
	}
	return nil
}

// host groups

func (s *Store) FindHostGroup(ctx context.Context, id uint) (*models.HostGroup, error) {
	hg := &models.HostGroup{}
	if err := s.q(ctx).First(hg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "host group %d", id)
	}
	return hg, nil
}

func (s *Store) ListHostGroups(ctx context.Context) ([]*models.HostGroup, error) {
	hgs := make([]*models.HostGroup, 0)
	if err := s.q(ctx).Order("id").Find(&hgs).Error; err != nil {
		return nil, errors.Wrap(err, "host groups")
	}
	return hgs, nil
}

var (
	_ Jobs        = (*Store)(nil)
	_ Groups      = (*Store)(nil)
	_ Permissions = (*Store)(nil)
	_ Actions     = (*Store)(nil)
	_ Histories   = (*Store)(nil)
	_ HostGroups  = (*Store)(nil)
)
