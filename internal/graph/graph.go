// Package graph validates that switching, editing or deleting jobs
// and groups keeps the job dependency graph coherent.
//
// Checks inspect only direct dependencies: a job's upstream set is
// its own dependency list and its downstream set is every job whose
// list names it. A clean result means valid at check time; nothing
// here locks the graph against a concurrent mutation. Walk follows
// the same sets transitively for reads.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/pkg/errors"
)

// Violation names the graph rule a check tripped.
type Violation string

const (
	UpstreamDisabled  Violation = "upstream_disabled"
	DownstreamEnabled Violation = "downstream_enabled"
	JobEnabled        Violation = "job_enabled"
	HasDependents     Violation = "has_dependents"
	GroupNotEmpty     Violation = "group_not_empty"
	MissingUpstream   Violation = "missing_upstream"
)

// ConstraintError reports a graph violation and the job ids behind it.
type ConstraintError struct {
	Violation Violation
	Subject   uint
	IDs       []uint
}

func (e *ConstraintError) Error() string {
	switch e.Violation {
	case UpstreamDisabled:
		return "upstream has disabled jobs: " + joinIDs(e.IDs, ",")
	case DownstreamEnabled:
		return "downstream has enabled jobs: " + joinIDs(e.IDs, ",")
	case JobEnabled:
		return "cannot delete an enabled job"
	case HasDependents:
		return dependentsMessage(e.Subject, e.IDs)
	case GroupNotEmpty:
		return "cannot delete group containing jobs: [ " + joinIDs(e.IDs, " ") + " ]"
	case MissingUpstream:
		return "dependency jobs do not exist: " + joinIDs(e.IDs, ",")
	default:
		return string(e.Violation)
	}
}

// Is matches another ConstraintError with the same violation, so
// callers can test errors.Is(err, &ConstraintError{Violation: ...}).
func (e *ConstraintError) Is(target error) bool {
	t, ok := target.(*ConstraintError)
	return ok && t.Violation == e.Violation
}

// AsConstraint unwraps err into a ConstraintError if it holds one.
func AsConstraint(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// dependentsMessage renders "job dependencies: [3 -> 7 9 ]", the first
// dependent carrying the arrow from the job being deleted.
func dependentsMessage(subject uint, ids []uint) string {
	var sb strings.Builder
	sb.WriteString("job dependencies: ")
	for i, id := range ids {
		if i == 0 {
			fmt.Fprintf(&sb, "[%d -> %d ", subject, id)
			continue
		}
		fmt.Fprintf(&sb, "%d ", id)
	}
	sb.WriteString("]")
	return sb.String()
}

func joinIDs(ids []uint, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}

type Repository interface {
	FindJob(ctx context.Context, id uint) (*models.Job, error)
	JobsByGroup(ctx context.Context, groupID uint) (models.Jobs, error)
	UpstreamJobs(ctx context.Context, id uint) (models.Jobs, error)
	DownstreamJobs(ctx context.Context, id uint) (models.Jobs, error)
}

type Validator struct {
	repo Repository
}

func NewValidator(repo Repository) *Validator {
	if repo == nil {
		panic("graph validator requires job repository")
	}
	return &Validator{repo: repo}
}

// CheckEnable fails with UpstreamDisabled when any direct upstream
// job of jobID is disabled. IDs holds exactly the disabled subset.
func (v *Validator) CheckEnable(ctx context.Context, jobID uint) error {
	upstream, err := v.repo.UpstreamJobs(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "upstream of job %d", jobID)
	}

	if ids := filterAuto(upstream, false); len(ids) > 0 {
		return &ConstraintError{Violation: UpstreamDisabled, Subject: jobID, IDs: ids}
	}
	return nil
}

// CheckDisable fails with DownstreamEnabled when any job depending
// directly on jobID is enabled.
func (v *Validator) CheckDisable(ctx context.Context, jobID uint) error {
	downstream, err := v.repo.DownstreamJobs(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "downstream of job %d", jobID)
	}

	if ids := filterAuto(downstream, true); len(ids) > 0 {
		return &ConstraintError{Violation: DownstreamEnabled, Subject: jobID, IDs: ids}
	}
	return nil
}

// CheckToggle validates flipping the enabled flag of job from its
// current value.
func (v *Validator) CheckToggle(ctx context.Context, job *models.Job) error {
	if job.Auto {
		return v.CheckDisable(ctx, job.ID)
	}
	return v.CheckEnable(ctx, job.ID)
}

// CheckDeleteJob fails with JobEnabled for an enabled job, then with
// HasDependents if any other job still lists it as a dependency.
func (v *Validator) CheckDeleteJob(ctx context.Context, jobID uint) error {
	job, err := v.repo.FindJob(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "delete check of job %d", jobID)
	}
	if job.Auto {
		return &ConstraintError{Violation: JobEnabled, Subject: jobID}
	}

	dependents, err := v.repo.DownstreamJobs(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "dependents of job %d", jobID)
	}
	if len(dependents) > 0 {
		return &ConstraintError{Violation: HasDependents, Subject: jobID, IDs: dependents.IDs()}
	}
	return nil
}

// CheckDeleteGroup fails with GroupNotEmpty when any job belongs
// directly to groupID. Child groups are not inspected.
func (v *Validator) CheckDeleteGroup(ctx context.Context, groupID uint) error {
	jobs, err := v.repo.JobsByGroup(ctx, groupID)
	if err != nil {
		return errors.Wrapf(err, "delete check of group %d", groupID)
	}
	if len(jobs) > 0 {
		return &ConstraintError{Violation: GroupNotEmpty, Subject: groupID, IDs: jobs.IDs()}
	}
	return nil
}

// CheckDependencies validates a dependency list about to be stored on
// a job: each id must name an existing, enabled job.
func (v *Validator) CheckDependencies(ctx context.Context, ids []uint) error {
	var missing, disabled []uint

	for _, id := range ids {
		job, err := v.repo.FindJob(ctx, id)
		if repository.IsNotFound(err) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "dependency %d", id)
		}
		if !job.Auto {
			disabled = append(disabled, id)
		}
	}

	if len(missing) > 0 {
		return &ConstraintError{Violation: MissingUpstream, IDs: missing}
	}
	if len(disabled) > 0 {
		return &ConstraintError{Violation: UpstreamDisabled, IDs: disabled}
	}
	return nil
}

func filterAuto(jobs models.Jobs, auto bool) []uint {
	var ids []uint
	for _, j := range jobs {
		if j.Auto == auto {
			ids = append(ids, j.ID)
		}
	}
	return ids
}
