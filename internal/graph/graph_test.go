package graph

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/internal/testutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"
)

type GraphTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *repository.Store
	validator *Validator
}

func (s *GraphTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewStore(testutil.OpenTestDB(s.T()))
	s.validator = NewValidator(s.store)
}

func (s *GraphTestSuite) create(jobs ...*models.Job) {
	for _, j := range jobs {
		require.NoError(s.T(), s.store.CreateJob(s.ctx, j))
	}
}

func (s *GraphTestSuite) TestEnableWithDisabledUpstream() {
	s.create(
		&models.Job{ID: 3, Name: "three"},
		&models.Job{ID: 7, Name: "seven", Dependencies: []uint{3}},
	)

	err := s.validator.CheckEnable(s.ctx, 7)
	ce, ok := AsConstraint(err)
	require.True(s.T(), ok, "expected constraint error, got %v", err)
	assert.Equal(s.T(), UpstreamDisabled, ce.Violation)
	assert.Equal(s.T(), []uint{3}, ce.IDs)
	assert.Equal(s.T(), "upstream has disabled jobs: 3", ce.Error())
}

func (s *GraphTestSuite) TestEnableReportsOnlyDisabledSubset() {
	s.create(
		&models.Job{ID: 1, Name: "one", Auto: true},
		&models.Job{ID: 2, Name: "two"},
		&models.Job{ID: 4, Name: "four"},
		&models.Job{ID: 9, Name: "nine", Dependencies: []uint{4, 1, 2}},
	)

	err := s.validator.CheckEnable(s.ctx, 9)
	ce, ok := AsConstraint(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), []uint{4, 2}, ce.IDs)
}

func (s *GraphTestSuite) TestEnableWithEnabledUpstream() {
	s.create(
		&models.Job{ID: 3, Name: "three", Auto: true},
		&models.Job{ID: 7, Name: "seven", Dependencies: []uint{3}},
	)
	assert.NoError(s.T(), s.validator.CheckEnable(s.ctx, 7))
}

func (s *GraphTestSuite) TestDisableWithEnabledDownstream() {
	s.create(
		&models.Job{ID: 3, Name: "three", Auto: true},
		&models.Job{ID: 7, Name: "seven", Auto: true, Dependencies: []uint{3}},
		&models.Job{ID: 8, Name: "eight", Dependencies: []uint{3}},
	)

	err := s.validator.CheckDisable(s.ctx, 3)
	assert.ErrorIs(s.T(), err, &ConstraintError{Violation: DownstreamEnabled})
	ce, _ := AsConstraint(err)
	assert.Equal(s.T(), []uint{7}, ce.IDs)
}

func (s *GraphTestSuite) TestToggleDispatchesOnCurrentState() {
	s.create(
		&models.Job{ID: 3, Name: "three", Auto: true},
		&models.Job{ID: 7, Name: "seven", Auto: true, Dependencies: []uint{3}},
	)

	job, err := s.store.FindJob(s.ctx, 3)
	require.NoError(s.T(), err)
	assert.ErrorIs(s.T(), s.validator.CheckToggle(s.ctx, job), &ConstraintError{Violation: DownstreamEnabled})

	job, err = s.store.FindJob(s.ctx, 7)
	require.NoError(s.T(), err)
	assert.NoError(s.T(), s.validator.CheckToggle(s.ctx, job))
}

func (s *GraphTestSuite) TestDeleteEnabledJob() {
	s.create(&models.Job{ID: 3, Name: "three", Auto: true})

	err := s.validator.CheckDeleteJob(s.ctx, 3)
	assert.ErrorIs(s.T(), err, &ConstraintError{Violation: JobEnabled})
}

func (s *GraphTestSuite) TestDeleteJobWithDependents() {
	s.create(
		&models.Job{ID: 3, Name: "three"},
		&models.Job{ID: 7, Name: "seven", Dependencies: []uint{3}},
		&models.Job{ID: 9, Name: "nine", Dependencies: []uint{1, 3}},
	)

	err := s.validator.CheckDeleteJob(s.ctx, 3)
	ce, ok := AsConstraint(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), HasDependents, ce.Violation)
	assert.Equal(s.T(), []uint{7, 9}, ce.IDs)
	assert.Equal(s.T(), "job dependencies: [3 -> 7 9 ]", ce.Error())
}

// Job 7 depends on disabled job 3: enabling 7 fails, and 3 can only
// be deleted once nothing lists it.
func (s *GraphTestSuite) TestWorkedExample() {
	s.create(
		&models.Job{ID: 3, Name: "three"},
		&models.Job{ID: 7, Name: "seven", Dependencies: []uint{3}},
	)

	ce, ok := AsConstraint(s.validator.CheckEnable(s.ctx, 7))
	require.True(s.T(), ok)
	assert.Equal(s.T(), UpstreamDisabled, ce.Violation)
	assert.Equal(s.T(), []uint{3}, ce.IDs)

	assert.ErrorIs(s.T(), s.validator.CheckDeleteJob(s.ctx, 3), &ConstraintError{Violation: HasDependents})

	require.NoError(s.T(), s.store.UpdateJob(s.ctx, &models.Job{ID: 7, Name: "seven"}))
	assert.NoError(s.T(), s.validator.CheckDeleteJob(s.ctx, 3))
}

func (s *GraphTestSuite) TestDeleteMissingJob() {
	err := s.validator.CheckDeleteJob(s.ctx, 404)
	assert.True(s.T(), repository.IsNotFound(err))
}

func (s *GraphTestSuite) TestDeleteGroup() {
	s.create(
		&models.Job{ID: 4, Name: "four", GroupID: 2},
		&models.Job{ID: 5, Name: "five", GroupID: 2},
		&models.Job{ID: 6, Name: "six", GroupID: 3},
	)

	err := s.validator.CheckDeleteGroup(s.ctx, 2)
	ce, ok := AsConstraint(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), GroupNotEmpty, ce.Violation)
	assert.Equal(s.T(), "cannot delete group containing jobs: [ 4 5 ]", ce.Error())

	assert.NoError(s.T(), s.validator.CheckDeleteGroup(s.ctx, 8))
}

func (s *GraphTestSuite) TestCheckDependencies() {
	s.create(
		&models.Job{ID: 1, Name: "one", Auto: true},
		&models.Job{ID: 2, Name: "two"},
	)

	assert.NoError(s.T(), s.validator.CheckDependencies(s.ctx, []uint{1}))
	assert.ErrorIs(s.T(), s.validator.CheckDependencies(s.ctx, []uint{1, 2}), &ConstraintError{Violation: UpstreamDisabled})
	assert.ErrorIs(s.T(), s.validator.CheckDependencies(s.ctx, []uint{2, 77}), &ConstraintError{Violation: MissingUpstream})
}

func TestGraphTestSuite(t *testing.T) {
	suite.Run(t, new(GraphTestSuite))
}

// memRepo is an in-memory Repository used by the property tests.
type memRepo map[uint]*models.Job

func (m memRepo) FindJob(_ context.Context, id uint) (*models.Job, error) {
	if j, ok := m[id]; ok {
		return j, nil
	}
	return nil, errors.Wrapf(repository.ErrNotFound, "job %d", id)
}

func (m memRepo) sorted() models.Jobs {
	jobs := make(models.Jobs, 0, len(m))
	for _, j := range m {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].ID < jobs[b].ID })
	return jobs
}

func (m memRepo) JobsByGroup(_ context.Context, groupID uint) (models.Jobs, error) {
	var out models.Jobs
	for _, j := range m.sorted() {
		if j.GroupID == groupID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m memRepo) UpstreamJobs(ctx context.Context, id uint) (models.Jobs, error) {
	job, err := m.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	var out models.Jobs
	for _, dep := range job.Dependencies {
		if j, ok := m[dep]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m memRepo) DownstreamJobs(_ context.Context, id uint) (models.Jobs, error) {
	var out models.Jobs
	for _, j := range m.sorted() {
		if j.ID != id && j.DependsOn(id) {
			out = append(out, j)
		}
	}
	return out, nil
}

func drawGraph(t *rapid.T) memRepo {
	n := rapid.IntRange(1, 12).Draw(t, "jobs")
	repo := memRepo{}
	for i := 1; i <= n; i++ {
		deps := rapid.SliceOfDistinct(rapid.UintRange(1, uint(n)), func(v uint) uint { return v }).Draw(t, fmt.Sprintf("deps_%d", i))
		filtered := make([]uint, 0, len(deps))
		for _, d := range deps {
			if d != uint(i) {
				filtered = append(filtered, d)
			}
		}
		repo[uint(i)] = &models.Job{
			ID:           uint(i),
			GroupID:      rapid.UintRange(1, 3).Draw(t, fmt.Sprintf("group_%d", i)),
			Auto:         rapid.Bool().Draw(t, fmt.Sprintf("auto_%d", i)),
			Dependencies: filtered,
		}
	}
	return repo
}

func TestEnableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo := drawGraph(t)
		target := rapid.UintRange(1, uint(len(repo))).Draw(t, "target")

		var want []uint
		for _, dep := range repo[target].Dependencies {
			if !repo[dep].Auto {
				want = append(want, dep)
			}
		}

		err := NewValidator(repo).CheckEnable(context.Background(), target)
		if len(want) == 0 {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		ce, ok := AsConstraint(err)
		if !ok || ce.Violation != UpstreamDisabled {
			t.Fatalf("expected upstream disabled, got %v", err)
		}
		if fmt.Sprint(ce.IDs) != fmt.Sprint(want) {
			t.Fatalf("ids: want %v, got %v", want, ce.IDs)
		}
	})
}

func TestDisableAndDeleteProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo := drawGraph(t)
		target := rapid.UintRange(1, uint(len(repo))).Draw(t, "target")
		v := NewValidator(repo)

		enabledDependent, anyDependent := false, false
		for _, j := range repo {
			if j.ID != target && j.DependsOn(target) {
				anyDependent = true
				enabledDependent = enabledDependent || j.Auto
			}
		}

		err := v.CheckDisable(context.Background(), target)
		if enabledDependent != (err != nil) {
			t.Fatalf("disable: enabled dependent=%v err=%v", enabledDependent, err)
		}

		repo[target].Auto = false
		err = v.CheckDeleteJob(context.Background(), target)
		if anyDependent != (err != nil) {
			t.Fatalf("delete: dependent=%v err=%v", anyDependent, err)
		}
	})
}

func TestDeleteGroupProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo := drawGraph(t)
		group := rapid.UintRange(1, 4).Draw(t, "group")

		occupied := false
		for _, j := range repo {
			occupied = occupied || j.GroupID == group
		}

		err := NewValidator(repo).CheckDeleteGroup(context.Background(), group)
		if occupied != (err != nil) {
			t.Fatalf("group %d occupied=%v err=%v", group, occupied, err)
		}
	})
}
