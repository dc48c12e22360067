// Package auth decides whether an already identified actor may act
// on a job or group.
package auth

import (
	"context"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/pkg/log"
)

type Repository interface {
	FindJob(ctx context.Context, id uint) (*models.Job, error)
	FindGroup(ctx context.Context, id uint) (*models.Group, error)
	FindPermission(ctx context.Context, targetID uint, kind models.TargetKind, uid string) (*models.Permission, error)
}

type Gate struct {
	admin string
	repo  Repository
}

func NewGate(admin string, repo Repository) *Gate {
	if repo == nil {
		panic("authorization gate requires repository")
	}
	return &Gate{admin: admin, repo: repo}
}

// IsAdmin reports whether actor is the configured admin identity.
func (g *Gate) IsAdmin(actor string) bool {
	return actor != "" && actor == g.admin
}

// HasPermission resolves to true for the admin, for the owner of the
// target, or for an actor holding an explicit entry. Jobs fall back
// to the entries of their group; groups do not inherit from their
// ancestors. Missing targets and lookup failures resolve to false.
func (g *Gate) HasPermission(ctx context.Context, actor string, targetID uint, kind models.TargetKind) bool {
	if actor == "" {
		return false
	}
	if g.IsAdmin(actor) {
		return true
	}

	switch kind {
	case models.TargetJob:
		job, err := g.repo.FindJob(ctx, targetID)
		if err != nil {
			g.logLookup(err, "job", targetID)
			return false
		}
		if job.Owner == actor {
			return true
		}
		return g.hasEntry(ctx, targetID, models.TargetJob, actor) ||
			g.hasEntry(ctx, job.GroupID, models.TargetGroup, actor)
	case models.TargetGroup:
		group, err := g.repo.FindGroup(ctx, targetID)
		if err != nil {
			g.logLookup(err, "group", targetID)
			return false
		}
		if group.Owner == actor {
			return true
		}
		return g.hasEntry(ctx, targetID, models.TargetGroup, actor)
	default:
		return false
	}
}

func (g *Gate) hasEntry(ctx context.Context, targetID uint, kind models.TargetKind, actor string) bool {
	_, err := g.repo.FindPermission(ctx, targetID, kind, actor)
	if err != nil {
		g.logLookup(err, string(kind)+" permission", targetID)
		return false
	}
	return true
}

func (g *Gate) logLookup(err error, what string, id uint) {
	if repository.IsNotFound(err) {
		return
	}
	log.Error("authorization lookup failure", "target", what, "id", id, "error", err)
}
