package center

import (
	"context"
	"strings"

	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/inherit"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/pkg/jsonmap"
	"github.com/caesium-cloud/hera/pkg/log"
)

type GroupDetail struct {
	*models.Group
	InheritedConfig inherit.Config `json:"inherited_config"`
	Operators       []string       `json:"operators"`
	Children        models.Groups  `json:"children"`
}

func (c *Center) GetGroup(ctx context.Context, groupID uint) (*GroupDetail, error) {
	group, err := c.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, lookupFailure(err, "group %d does not exist", groupID)
	}

	cfg, err := inherit.Resolve(ctx, c.store, group.Parent)
	if err != nil {
		return nil, fault.Wrap(err, "resolve inherited config")
	}

	detail := &GroupDetail{Group: group, InheritedConfig: cfg}
	if detail.Operators, err = c.operators(ctx, groupID, models.TargetGroup); err != nil {
		return nil, err
	}
	if detail.Children, err = c.store.ChildGroups(ctx, groupID); err != nil {
		return nil, fault.Wrap(err, "list child groups")
	}
	return detail, nil
}

type GroupInput struct {
	Name    string            `json:"name"`
	Configs map[string]string `json:"configs"`
}

// AddGroup creates a group owned by the actor under parentID, which
// must be the root or an existing group the actor may manage.
func (c *Center) AddGroup(ctx context.Context, actor string, parentID uint, in GroupInput) (*models.Group, error) {
	if err := c.authorize(ctx, actor, parentID, models.TargetGroup); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Invalid("group name must not be empty")
	}
	if parentID != models.RootGroupID {
		if _, err := c.store.FindGroup(ctx, parentID); err != nil {
			return nil, lookupFailure(err, "group %d does not exist", parentID)
		}
	}

	group := &models.Group{
		Parent:  parentID,
		Name:    in.Name,
		Owner:   actor,
		Configs: jsonmap.FromStringMap(in.Configs),
	}
	if err := c.store.CreateGroup(ctx, group); err != nil {
		return nil, fault.Wrap(err, "create group")
	}

	log.Info("group created", "group_id", group.ID, "parent", parentID, "actor", actor)
	c.publish(event.Event{Type: event.TypeGroupCreated, GroupID: group.ID, Actor: actor})
	return group, nil
}

// UpdateGroup replaces a group's name and configs.
func (c *Center) UpdateGroup(ctx context.Context, actor string, groupID uint, in GroupInput) (*models.Group, error) {
	if err := c.authorize(ctx, actor, groupID, models.TargetGroup); err != nil {
		return nil, err
	}

	group, err := c.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, lookupFailure(err, "group %d does not exist", groupID)
	}
	if strings.TrimSpace(in.Name) != "" {
		group.Name = in.Name
	}
	group.Configs = jsonmap.FromStringMap(in.Configs)

	if err := c.store.UpdateGroup(ctx, group); err != nil {
		return nil, lookupFailure(err, "group %d does not exist", groupID)
	}

	log.Info("group updated", "group_id", groupID, "actor", actor)
	c.publish(event.Event{Type: event.TypeGroupUpdated, GroupID: groupID, Actor: actor})
	return group, nil
}
