package center

import (
	"context"
	"strings"

	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/graph"
	"github.com/caesium-cloud/hera/internal/inherit"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/schedule"
	"github.com/caesium-cloud/hera/pkg/jsonmap"
	"github.com/caesium-cloud/hera/pkg/log"
)

// ToggleEnabled flips the enabled flag of a job. Enabling requires
// every direct upstream job to be enabled; disabling requires every
// direct downstream job to be disabled. A newly enabled job is pushed
// to the peer.
func (c *Center) ToggleEnabled(ctx context.Context, actor string, jobID uint) (*models.Job, error) {
	if err := c.authorize(ctx, actor, jobID, models.TargetJob); err != nil {
		return nil, err
	}

	job, err := c.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, lookupFailure(err, "job %d does not exist", jobID)
	}
	if err := c.validator.CheckToggle(ctx, job); err != nil {
		return nil, checkFailure(err, "job %d does not exist", jobID)
	}

	job.Auto = !job.Auto
	if err := c.store.SetAuto(ctx, jobID, job.Auto); err != nil {
		return nil, lookupFailure(err, "job %d does not exist", jobID)
	}

	log.Info("job switched", "job_id", jobID, "enabled", job.Auto, "actor", actor)
	if job.Auto {
		c.bridge.PushUpdate(jobID)
	}
	c.publish(event.Event{Type: event.TypeJobSwitched, JobID: jobID, GroupID: job.GroupID, Actor: actor})
	return job, nil
}

// Delete removes a job, or marks a group as no longer existing. Jobs
// must be disabled with no dependents; groups must hold no jobs
// directly.
func (c *Center) Delete(ctx context.Context, actor string, id uint, isGroup bool) error {
	kind := kindOf(isGroup)
	if err := c.authorize(ctx, actor, id, kind); err != nil {
		return err
	}

	if isGroup {
		if err := c.validator.CheckDeleteGroup(ctx, id); err != nil {
			return checkFailure(err, "group %d does not exist", id)
		}
		if err := c.store.DeleteGroup(ctx, id); err != nil {
			return lookupFailure(err, "group %d does not exist", id)
		}
		log.Info("group deleted", "group_id", id, "actor", actor)
		c.publish(event.Event{Type: event.TypeGroupDeleted, GroupID: id, Actor: actor})
		return nil
	}

	if err := c.validator.CheckDeleteJob(ctx, id); err != nil {
		return checkFailure(err, "job %d does not exist", id)
	}
	if err := c.store.DeleteJob(ctx, id); err != nil {
		return lookupFailure(err, "job %d does not exist", id)
	}

	log.Info("job deleted", "job_id", id, "actor", actor)
	c.bridge.PushUpdate(id)
	c.publish(event.Event{Type: event.TypeJobDeleted, JobID: id, Actor: actor})
	return nil
}

// InheritedConfig resolves the configuration a job or group inherits.
// A job sees its own group's chain; a group sees its parent's.
func (c *Center) InheritedConfig(ctx context.Context, id uint, isGroup bool) (inherit.Config, error) {
	var (
		cfg inherit.Config
		err error
	)
	if isGroup {
		cfg, err = inherit.ForGroup(ctx, c.store, id)
	} else {
		cfg, err = inherit.ForJob(ctx, c.store, c.store, id)
	}
	if err != nil {
		return nil, lookupFailure(err, "%s %d does not exist", kindOf(isGroup), id)
	}
	return cfg, nil
}

// JobDetail is a job with its resolved surroundings.
type JobDetail struct {
	*models.Job
	InheritedConfig inherit.Config `json:"inherited_config"`
	Operators       []string       `json:"operators"`
	HostGroupName   string         `json:"host_group_name,omitempty"`
}

func (c *Center) GetJob(ctx context.Context, jobID uint) (*JobDetail, error) {
	job, err := c.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, lookupFailure(err, "job %d does not exist", jobID)
	}

	cfg, err := inherit.Resolve(ctx, c.store, job.GroupID)
	if err != nil {
		return nil, fault.Wrap(err, "resolve inherited config")
	}

	detail := &JobDetail{Job: job, InheritedConfig: cfg}
	if detail.Operators, err = c.operators(ctx, jobID, models.TargetJob); err != nil {
		return nil, err
	}
	if hg, err := c.store.FindHostGroup(ctx, job.HostGroupID); err == nil {
		detail.HostGroupName = hg.Name
	}
	return detail, nil
}

// JobInput carries the editable fields of a job.
type JobInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	CronExpression string            `json:"cron_expression"`
	Script         string            `json:"script"`
	Configs        map[string]string `json:"configs"`
}

// AddJob creates a disabled, independently scheduled job owned by the
// actor in groupID, assigned to the default host group. The cron
// expression must parse.
func (c *Center) AddJob(ctx context.Context, actor string, groupID uint, in JobInput) (*models.Job, error) {
	if err := c.authorize(ctx, actor, groupID, models.TargetGroup); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Invalid("job name must not be empty")
	}
	if groupID != models.RootGroupID {
		if _, err := c.store.FindGroup(ctx, groupID); err != nil {
			return nil, lookupFailure(err, "group %d does not exist", groupID)
		}
	}
	if err := schedule.Validate(in.CronExpression); err != nil {
		return nil, fault.Invalid("cron expression is invalid, please verify it before saving")
	}

	job := &models.Job{
		GroupID:        groupID,
		Name:           in.Name,
		Description:    in.Description,
		Owner:          actor,
		CronExpression: in.CronExpression,
		Script:         in.Script,
		Configs:        jsonmap.FromStringMap(in.Configs),
		ScheduleType:   models.ScheduleTypeIndependent,
		HostGroupID:    c.cfg.DefaultHostGroup,
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fault.Wrap(err, "create job")
	}

	log.Info("job created", "job_id", job.ID, "group_id", groupID, "actor", actor)
	c.publish(event.Event{Type: event.TypeJobCreated, JobID: job.ID, GroupID: groupID, Actor: actor})
	return job, nil
}

// JobUpdate is a full replacement of a job's editable fields.
type JobUpdate struct {
	JobInput
	ID           uint                `json:"id"`
	ScheduleType models.ScheduleType `json:"schedule_type"`
	Dependencies []uint              `json:"dependencies"`
	HostGroupID  uint                `json:"host_group_id"`
}

// UpdateJob validates and stores a job edit. The description must not
// be blank and the cron expression must parse. A dependent job may
// only list existing, enabled jobs.
func (c *Center) UpdateJob(ctx context.Context, actor string, upd JobUpdate) (*models.Job, error) {
	if err := c.authorize(ctx, actor, upd.ID, models.TargetJob); err != nil {
		return nil, err
	}
	if strings.TrimSpace(upd.Description) == "" {
		return nil, fault.Invalid("description must not be empty")
	}
	if err := schedule.Validate(upd.CronExpression); err != nil {
		return nil, fault.Invalid("cron expression is invalid, please verify it before saving")
	}

	var deps []uint
	if upd.ScheduleType == models.ScheduleTypeDependent {
		for _, dep := range upd.Dependencies {
			if dep == upd.ID {
				return nil, fault.Invalid("job %d cannot depend on itself", upd.ID)
			}
		}
		if err := c.validator.CheckDependencies(ctx, upd.Dependencies); err != nil {
			return nil, checkFailure(err, "dependency lookup failed")
		}
		deps = upd.Dependencies
	}

	job, err := c.store.FindJob(ctx, upd.ID)
	if err != nil {
		return nil, lookupFailure(err, "job %d does not exist", upd.ID)
	}

	if upd.Name != "" {
		job.Name = upd.Name
	}
	job.Description = upd.Description
	job.CronExpression = upd.CronExpression
	job.Script = upd.Script
	job.Configs = jsonmap.FromStringMap(upd.Configs)
	job.ScheduleType = upd.ScheduleType
	job.Dependencies = deps
	if upd.HostGroupID != 0 {
		job.HostGroupID = upd.HostGroupID
	}

	if err := c.store.UpdateJob(ctx, job); err != nil {
		return nil, lookupFailure(err, "job %d does not exist", upd.ID)
	}

	log.Info("job updated", "job_id", job.ID, "actor", actor)
	if job.Auto {
		c.bridge.PushUpdate(job.ID)
	}
	c.publish(event.Event{Type: event.TypeJobUpdated, JobID: job.ID, GroupID: job.GroupID, Actor: actor})
	return job, nil
}

// JobGraph walks the dependency graph of a job transitively, towards
// what it waits on or towards what waits on it.
func (c *Center) JobGraph(ctx context.Context, jobID uint, dir graph.Direction) (*graph.Graph, error) {
	g, err := graph.Walk(ctx, c.store, jobID, dir)
	if err != nil {
		return nil, lookupFailure(err, "job %d does not exist", jobID)
	}
	return g, nil
}

// JobVersions lists the action ids generated for a job, newest first.
func (c *Center) JobVersions(ctx context.Context, jobID uint) ([]string, error) {
	ids, err := c.store.ActionIDsByJob(ctx, jobID)
	if err != nil {
		return nil, fault.Wrap(err, "list job versions")
	}
	return ids, nil
}

// HostGroups lists the worker host groups jobs may be assigned to.
func (c *Center) HostGroups(ctx context.Context) ([]*models.HostGroup, error) {
	hgs, err := c.store.ListHostGroups(ctx)
	if err != nil {
		return nil, fault.Wrap(err, "list host groups")
	}
	return hgs, nil
}
