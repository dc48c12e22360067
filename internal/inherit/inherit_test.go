package inherit

import (
	"context"
	"fmt"
	"testing"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"pgregory.net/rapid"
)

type groupMap map[uint]*models.Group

func (m groupMap) FindGroup(_ context.Context, id uint) (*models.Group, error) {
	if g, ok := m[id]; ok {
		return g, nil
	}
	return nil, errors.Wrapf(repository.ErrNotFound, "group %d", id)
}

type jobMap map[uint]*models.Job

func (m jobMap) FindJob(_ context.Context, id uint) (*models.Job, error) {
	if j, ok := m[id]; ok {
		return j, nil
	}
	return nil, errors.Wrapf(repository.ErrNotFound, "job %d", id)
}

func TestResolveFirstWriterWins(t *testing.T) {
	groups := groupMap{
		1: {ID: 1, Parent: 0, Configs: datatypes.JSONMap{"queue": "root", "owner": "ops", "retries": 1}},
		2: {ID: 2, Parent: 1, Configs: datatypes.JSONMap{"queue": "etl"}},
		3: {ID: 3, Parent: 2, Configs: datatypes.JSONMap{"db": "warehouse"}},
	}

	got, err := Resolve(context.Background(), groups, 3)
	require.NoError(t, err)

	want := Config{"db": "warehouse", "queue": "etl", "owner": "ops", "retries": "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inherited config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"db", "owner", "queue", "retries"}, got.Keys())
}

func TestResolveStopsAtMissingGroup(t *testing.T) {
	groups := groupMap{
		2: {ID: 2, Parent: 9, Configs: datatypes.JSONMap{"queue": "etl"}},
	}

	got, err := Resolve(context.Background(), groups, 2)
	require.NoError(t, err)
	assert.Equal(t, Config{"queue": "etl"}, got)
}

func TestResolveRootIsEmpty(t *testing.T) {
	got, err := Resolve(context.Background(), groupMap{}, models.RootGroupID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveBreaksLoops(t *testing.T) {
	groups := groupMap{
		1: {ID: 1, Parent: 2, Configs: datatypes.JSONMap{"a": "1"}},
		2: {ID: 2, Parent: 1, Configs: datatypes.JSONMap{"a": "2", "b": "2"}},
	}

	got, err := Resolve(context.Background(), groups, 1)
	require.NoError(t, err)
	assert.Equal(t, Config{"a": "1", "b": "2"}, got)
}

type failingGroups struct{}

func (failingGroups) FindGroup(context.Context, uint) (*models.Group, error) {
	return nil, errors.New("connection reset")
}

func TestResolvePropagatesRepositoryErrors(t *testing.T) {
	_, err := Resolve(context.Background(), failingGroups{}, 4)
	require.Error(t, err)
}

func TestForJobAndForGroup(t *testing.T) {
	groups := groupMap{
		1: {ID: 1, Configs: datatypes.JSONMap{"queue": "root"}},
		2: {ID: 2, Parent: 1, Configs: datatypes.JSONMap{"queue": "etl"}},
	}
	jobs := jobMap{7: {ID: 7, GroupID: 2}}

	got, err := ForJob(context.Background(), jobs, groups, 7)
	require.NoError(t, err)
	assert.Equal(t, Config{"queue": "etl"}, got)

	got, err = ForGroup(context.Background(), groups, 2)
	require.NoError(t, err)
	assert.Equal(t, Config{"queue": "root"}, got)

	_, err = ForJob(context.Background(), jobs, groups, 8)
	assert.True(t, repository.IsNotFound(err))
}

// For any chain G_n -> ... -> G_1 -> root, each key resolves to the
// value of the closest group defining it.
func TestResolveClosestAncestorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 8).Draw(t, "depth")
		keys := []string{"a", "b", "c", "d"}

		groups := groupMap{}
		for level := 1; level <= depth; level++ {
			configs := datatypes.JSONMap{}
			for _, key := range keys {
				if rapid.Bool().Draw(t, fmt.Sprintf("define_%d_%s", level, key)) {
					configs[key] = fmt.Sprintf("%s@%d", key, level)
				}
			}
			groups[uint(level)] = &models.Group{
				ID:      uint(level),
				Parent:  uint(level - 1),
				Configs: configs,
			}
		}

		got, err := Resolve(context.Background(), groups, uint(depth))
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}

		for _, key := range keys {
			want, defined := "", false
			for level := depth; level >= 1; level-- {
				if v, ok := groups[uint(level)].Configs[key]; ok {
					want, defined = v.(string), true
					break
				}
			}

			value, ok := got[key]
			if ok != defined {
				t.Fatalf("key %s: defined=%v resolved=%v", key, defined, ok)
			}
			if ok && value != want {
				t.Fatalf("key %s: want %q, got %q", key, want, value)
			}
		}
	})
}
