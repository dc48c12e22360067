package center

import (
	"context"

	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/pkg/log"
)

// UpdatePermission replaces the explicit operator entries of a job or
// group with uids.
func (c *Center) UpdatePermission(ctx context.Context, actor string, targetID uint, isGroup bool, uids []string) error {
	kind := kindOf(isGroup)
	if err := c.authorize(ctx, actor, targetID, kind); err != nil {
		return err
	}

	if err := c.store.ReplacePermissions(ctx, targetID, kind, uids); err != nil {
		return fault.Wrap(err, "update permissions")
	}

	log.Info("permissions updated", "target", kind, "id", targetID, "count", len(uids), "actor", actor)
	e := event.Event{Type: event.TypePermissionUpdated, Actor: actor}
	if isGroup {
		e.GroupID = targetID
	} else {
		e.JobID = targetID
	}
	c.publish(e)
	return nil
}

// Operators lists the explicit operator entries of a job or group.
func (c *Center) Operators(ctx context.Context, actor string, targetID uint, isGroup bool) ([]string, error) {
	kind := kindOf(isGroup)
	if err := c.authorize(ctx, actor, targetID, kind); err != nil {
		return nil, err
	}
	return c.operators(ctx, targetID, kind)
}

func (c *Center) operators(ctx context.Context, targetID uint, kind models.TargetKind) ([]string, error) {
	perms, err := c.store.PermissionsByTarget(ctx, targetID, kind)
	if err != nil {
		return nil, fault.Wrap(err, "list permissions")
	}

	uids := make([]string, 0, len(perms))
	for _, p := range perms {
		uids = append(uids, p.UID)
	}
	return uids, nil
}
