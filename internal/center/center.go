// Package center implements the caller-facing operations of the
// schedule center: switching, editing and deleting jobs and groups,
// permission management, and the run commands relayed to the worker
// peer. Every operation authorizes the actor first and reports
// failures as *fault.Error.
package center

import (
	"context"
	"strconv"
	"strings"

	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/graph"
	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/pkg/log"
)

// Store is every persistence collaborator the center uses.
type Store interface {
	repository.Jobs
	repository.Groups
	repository.Permissions
	repository.Actions
	repository.HostGroups
}

type Gate interface {
	IsAdmin(actor string) bool
	HasPermission(ctx context.Context, actor string, targetID uint, kind models.TargetKind) bool
}

type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.ExecuteRequest) (dispatch.Result, error)
	Cancel(ctx context.Context, req dispatch.CancelRequest) (dispatch.Result, error)
	GenerateVersion(ctx context.Context, actor string, jobID uint) (dispatch.Result, error)
	GenerateAllVersions(ctx context.Context, actor string) (dispatch.Result, error)
	PushUpdate(jobID uint)
}

type Config struct {
	// DefaultHostGroup is assigned to newly created jobs.
	DefaultHostGroup uint
}

type Center struct {
	store     Store
	gate      Gate
	validator *graph.Validator
	bridge    Dispatcher
	bus       event.Bus
	cfg       Config
}

func New(store Store, gate Gate, bridge Dispatcher, bus event.Bus, cfg Config) *Center {
	if store == nil || gate == nil || bridge == nil {
		panic("schedule center requires store, gate and dispatcher")
	}
	if bus == nil {
		bus = event.New()
	}
	return &Center{
		store:     store,
		gate:      gate,
		validator: graph.NewValidator(store),
		bridge:    bridge,
		bus:       bus,
		cfg:       cfg,
	}
}

// Bus exposes the event stream of center changes.
func (c *Center) Bus() event.Bus {
	return c.bus
}

const groupPrefix = "group_"

// ParseTargetID accepts a plain numeric id or a group reference of
// the form group_<n>.
func ParseTargetID(raw string) (uint, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), groupPrefix)
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fault.Invalid("invalid id %q", raw)
	}
	return uint(id), nil
}

func kindOf(isGroup bool) models.TargetKind {
	if isGroup {
		return models.TargetGroup
	}
	return models.TargetJob
}

func (c *Center) authorize(ctx context.Context, actor string, id uint, kind models.TargetKind) error {
	if !c.gate.HasPermission(ctx, actor, id, kind) {
		log.Info("permission denied", "actor", actor, "target", kind, "id", id)
		return fault.Denied()
	}
	return nil
}

func (c *Center) publish(e event.Event) {
	c.bus.Publish(e)
}

// lookupFailure classifies a repository error.
func lookupFailure(err error, format string, args ...any) error {
	if repository.IsNotFound(err) {
		return fault.Missing(format, args...)
	}
	return fault.Wrap(err, "storage failure")
}

// checkFailure classifies a graph check error.
func checkFailure(err error, format string, args ...any) error {
	if ce, ok := graph.AsConstraint(err); ok {
		metrics.GraphViolationsTotal.WithLabelValues(string(ce.Violation)).Inc()
		return fault.Constraint(ce)
	}
	return lookupFailure(err, format, args...)
}
