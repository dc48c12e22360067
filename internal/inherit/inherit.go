// Package inherit resolves configuration inherited through the
// group tree. The closest group that defines a key wins.
package inherit

import (
	"context"
	"sort"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/pkg/jsonmap"
	"github.com/pkg/errors"
)

type GroupFinder interface {
	FindGroup(ctx context.Context, id uint) (*models.Group, error)
}

type JobFinder interface {
	FindJob(ctx context.Context, id uint) (*models.Job, error)
}

// Config is a resolved key/value configuration.
type Config map[string]string

// Keys returns the configuration keys in lexical order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve walks the parent chain starting at groupID and merges each
// level's configs. A key set by a closer level is never replaced by
// an ancestor. The walk ends at the root sentinel or at a group that
// does not exist.
func Resolve(ctx context.Context, groups GroupFinder, groupID uint) (Config, error) {
	config := Config{}
	visited := make(map[uint]struct{})

	for id := groupID; id != models.RootGroupID; {
		if _, ok := visited[id]; ok {
			// parent chains are acyclic by construction; a loop
			// means the tree was edited outside the center
			break
		}
		visited[id] = struct{}{}

		group, err := groups.FindGroup(ctx, id)
		if repository.IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "resolve inherited config of group %d", groupID)
		}

		for key, value := range jsonmap.ToStringMap(group.Configs) {
			if _, ok := config[key]; !ok {
				config[key] = value
			}
		}

		id = group.Parent
	}

	return config, nil
}

// ForJob resolves the configuration a job inherits from its group.
func ForJob(ctx context.Context, jobs JobFinder, groups GroupFinder, jobID uint) (Config, error) {
	job, err := jobs.FindJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, groups, job.GroupID)
}

// ForGroup resolves the configuration a group inherits, which starts
// at its parent.
func ForGroup(ctx context.Context, groups GroupFinder, groupID uint) (Config, error) {
	group, err := groups.FindGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, groups, group.Parent)
}
