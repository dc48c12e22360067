package center

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/caesium-cloud/hera/internal/auth"
	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/internal/graph"
	"github.com/caesium-cloud/hera/internal/inherit"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/internal/testutil"
	"github.com/caesium-cloud/hera/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
)

// recordingDispatcher answers every command as completed and keeps
// the pushes it was asked for.
type recordingDispatcher struct {
	mu     sync.Mutex
	pushed []uint
	calls  []string
}

func (d *recordingDispatcher) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *recordingDispatcher) Execute(_ context.Context, req dispatch.ExecuteRequest) (dispatch.Result, error) {
	d.record("execute " + req.ActionID + " " + req.TriggerType.String())
	return dispatch.Result{Completed: true, Success: true, Message: req.ActionID}, nil
}

func (d *recordingDispatcher) Cancel(context.Context, dispatch.CancelRequest) (dispatch.Result, error) {
	d.record("cancel")
	return dispatch.Result{Completed: true, Success: true}, nil
}

func (d *recordingDispatcher) GenerateVersion(context.Context, string, uint) (dispatch.Result, error) {
	d.record("generate")
	return dispatch.Result{Message: dispatch.GeneratePending}, nil
}

func (d *recordingDispatcher) GenerateAllVersions(_ context.Context, actor string) (dispatch.Result, error) {
	if actor != "admin" {
		return dispatch.Result{}, fault.Denied()
	}
	d.record("generate all")
	return dispatch.Result{Completed: true, Success: true}, nil
}

func (d *recordingDispatcher) PushUpdate(jobID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushed = append(d.pushed, jobID)
}

func (d *recordingDispatcher) pushes() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint(nil), d.pushed...)
}

type CenterTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *repository.Store
	bridge *recordingDispatcher
	bus    event.Bus
	center *Center
}

func (s *CenterTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewStore(testutil.OpenTestDB(s.T()))
	s.bridge = &recordingDispatcher{}
	s.bus = event.New()
	s.center = New(s.store, auth.NewGate("admin", s.store), s.bridge, s.bus, Config{DefaultHostGroup: 1})

	require.NoError(s.T(), s.store.CreateGroup(s.ctx, &models.Group{
		ID: 1, Name: "root", Owner: "admin",
		Configs: datatypes.JSONMap{"queue": "default", "region": "eu"},
	}))
	require.NoError(s.T(), s.store.CreateGroup(s.ctx, &models.Group{
		ID: 2, Parent: 1, Name: "etl", Owner: "bob",
		Configs: datatypes.JSONMap{"queue": "etl"},
	}))
	testutil.MustCreate(s.T(), s.store.DB(),
		&models.HostGroup{ID: 1, Name: "default"},
		&models.Job{ID: 3, GroupID: 2, Name: "three", Owner: "bob", HostGroupID: 1},
		&models.Job{ID: 7, GroupID: 2, Name: "seven", Owner: "bob", Dependencies: []uint{3}},
	)
}

func (s *CenterTestSuite) subscribe() <-chan event.Event {
	ctx, cancel := context.WithCancel(s.ctx)
	s.T().Cleanup(cancel)
	ch, err := s.bus.Subscribe(ctx, event.Filter{})
	require.NoError(s.T(), err)
	return ch
}

func (s *CenterTestSuite) TestToggleRespectsUpstream() {
	_, err := s.center.ToggleEnabled(s.ctx, "bob", 7)
	require.Error(s.T(), err)
	assert.Equal(s.T(), fault.GraphConstraintViolation, fault.KindOf(err))
	assert.Equal(s.T(), "upstream has disabled jobs: 3", err.Error())
	assert.Empty(s.T(), s.bridge.pushes())

	events := s.subscribe()
	job, err := s.center.ToggleEnabled(s.ctx, "bob", 3)
	require.NoError(s.T(), err)
	assert.True(s.T(), job.Auto)
	assert.Equal(s.T(), []uint{3}, s.bridge.pushes())

	e := <-events
	assert.Equal(s.T(), event.TypeJobSwitched, e.Type)
	assert.Equal(s.T(), uint(3), e.JobID)

	job, err = s.center.ToggleEnabled(s.ctx, "bob", 7)
	require.NoError(s.T(), err)
	assert.True(s.T(), job.Auto)
}

func (s *CenterTestSuite) TestToggleRespectsDownstream() {
	require.NoError(s.T(), s.store.SetAuto(s.ctx, 3, true))
	require.NoError(s.T(), s.store.SetAuto(s.ctx, 7, true))

	_, err := s.center.ToggleEnabled(s.ctx, "bob", 3)
	assert.ErrorIs(s.T(), err, &fault.Error{Kind: fault.GraphConstraintViolation})
	assert.Equal(s.T(), "downstream has enabled jobs: 7", err.Error())

	job, err := s.center.ToggleEnabled(s.ctx, "bob", 7)
	require.NoError(s.T(), err)
	assert.False(s.T(), job.Auto)
	// disabling does not push
	assert.Empty(s.T(), s.bridge.pushes())

	stored, err := s.store.FindJob(s.ctx, 7)
	require.NoError(s.T(), err)
	assert.False(s.T(), stored.Auto)
}

func (s *CenterTestSuite) TestToggleDeniedLeaksNothing() {
	_, denied := s.center.ToggleEnabled(s.ctx, "mallory", 3)
	_, missing := s.center.ToggleEnabled(s.ctx, "mallory", 404)

	assert.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(denied))
	assert.Equal(s.T(), denied.Error(), missing.Error())

	_, err := s.center.ToggleEnabled(s.ctx, "admin", 404)
	assert.Equal(s.T(), fault.NotFound, fault.KindOf(err))
}

func (s *CenterTestSuite) TestDeleteJob() {
	err := s.center.Delete(s.ctx, "bob", 3, false)
	assert.Equal(s.T(), fault.GraphConstraintViolation, fault.KindOf(err))
	assert.Equal(s.T(), "job dependencies: [3 -> 7 ]", err.Error())

	require.NoError(s.T(), s.center.Delete(s.ctx, "bob", 7, false))
	require.NoError(s.T(), s.center.Delete(s.ctx, "bob", 3, false))
	assert.Equal(s.T(), []uint{7, 3}, s.bridge.pushes())
	testutil.AssertCount(s.T(), s.store.DB(), &models.Job{}, 0)
}

func (s *CenterTestSuite) TestDeleteEnabledJob() {
	require.NoError(s.T(), s.store.SetAuto(s.ctx, 7, true))

	err := s.center.Delete(s.ctx, "bob", 7, false)
	assert.Equal(s.T(), "cannot delete an enabled job", err.Error())
}

func (s *CenterTestSuite) TestDeleteGroup() {
	err := s.center.Delete(s.ctx, "bob", 2, true)
	assert.Equal(s.T(), fault.GraphConstraintViolation, fault.KindOf(err))
	assert.Equal(s.T(), "cannot delete group containing jobs: [ 3 7 ]", err.Error())

	group, err := s.center.AddGroup(s.ctx, "bob", 2, GroupInput{Name: "empty"})
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.center.Delete(s.ctx, "bob", group.ID, true))

	_, err = s.store.FindGroup(s.ctx, group.ID)
	assert.True(s.T(), repository.IsNotFound(err))
	// no pushes for groups
	assert.Empty(s.T(), s.bridge.pushes())
}

func (s *CenterTestSuite) TestInheritedConfig() {
	cfg, err := s.center.InheritedConfig(s.ctx, 3, false)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), inherit.Config{"queue": "etl", "region": "eu"}, cfg)

	cfg, err = s.center.InheritedConfig(s.ctx, 2, true)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), inherit.Config{"queue": "default", "region": "eu"}, cfg)

	_, err = s.center.InheritedConfig(s.ctx, 404, false)
	assert.Equal(s.T(), fault.NotFound, fault.KindOf(err))
}

func (s *CenterTestSuite) TestGetJobAndGroup() {
	require.NoError(s.T(), s.center.UpdatePermission(s.ctx, "bob", 3, false, []string{"carol", "dave", "carol"}))

	job, err := s.center.GetJob(s.ctx, 3)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "three", job.Name)
	assert.Equal(s.T(), []string{"carol", "dave"}, job.Operators)
	assert.Equal(s.T(), "default", job.HostGroupName)
	assert.Equal(s.T(), "etl", job.InheritedConfig["queue"])

	group, err := s.center.GetGroup(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "default", group.InheritedConfig["queue"])
	assert.Empty(s.T(), group.Operators)
	assert.Empty(s.T(), group.Children)

	root, err := s.center.GetGroup(s.ctx, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), root.Children, 1)
	assert.Equal(s.T(), "etl", root.Children[0].Name)
}

func (s *CenterTestSuite) TestPermissionEntriesGrantAccess() {
	_, err := s.center.ToggleEnabled(s.ctx, "carol", 3)
	require.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(err))

	require.NoError(s.T(), s.center.UpdatePermission(s.ctx, "bob", 2, true, []string{"carol"}))

	// a group entry covers the jobs in the group
	_, err = s.center.ToggleEnabled(s.ctx, "carol", 3)
	require.NoError(s.T(), err)

	uids, err := s.center.Operators(s.ctx, "carol", 2, true)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"carol"}, uids)

	err = s.center.UpdatePermission(s.ctx, "mallory", 2, true, nil)
	assert.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(err))
}

func (s *CenterTestSuite) TestAddJob() {
	job, err := s.center.AddJob(s.ctx, "bob", 2, JobInput{
		Name:           "nightly",
		CronExpression: "0 0 3 * * ?",
		Configs:        map[string]string{"retries": "2"},
	})
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), job.ID)
	assert.Equal(s.T(), "bob", job.Owner)
	assert.Equal(s.T(), uint(1), job.HostGroupID)
	assert.Equal(s.T(), models.ScheduleTypeIndependent, job.ScheduleType)
	assert.False(s.T(), job.Auto)

	_, err = s.center.AddJob(s.ctx, "bob", 2, JobInput{Name: " "})
	assert.Equal(s.T(), fault.ValidationFailure, fault.KindOf(err))

	_, err = s.center.AddJob(s.ctx, "carol", 2, JobInput{Name: "x"})
	assert.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(err))

	_, err = s.center.AddJob(s.ctx, "admin", 99, JobInput{Name: "x"})
	assert.Equal(s.T(), fault.NotFound, fault.KindOf(err))

	for _, expr := range []string{"", "this is not cron", "0 0 3 * * ? 1900"} {
		_, err = s.center.AddJob(s.ctx, "bob", 2, JobInput{Name: "bad", CronExpression: expr})
		assert.Equal(s.T(), fault.ValidationFailure, fault.KindOf(err), expr)
	}
	jobs, err := s.store.JobsByGroup(s.ctx, 2)
	require.NoError(s.T(), err)
	assert.Len(s.T(), jobs, 3)
}

func (s *CenterTestSuite) TestAddGroupUnderRootRequiresAdmin() {
	_, err := s.center.AddGroup(s.ctx, "bob", models.RootGroupID, GroupInput{Name: "top"})
	assert.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(err))

	group, err := s.center.AddGroup(s.ctx, "admin", models.RootGroupID, GroupInput{Name: "top"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "admin", group.Owner)
	assert.True(s.T(), group.Existed)
}

func (s *CenterTestSuite) TestUpdateJobValidation() {
	base := JobUpdate{
		ID: 7,
		JobInput: JobInput{
			Description:    "loads seven",
			CronExpression: "0 0 3 * * ?",
			Script:         "echo 7",
		},
		ScheduleType: models.ScheduleTypeDependent,
		Dependencies: []uint{3},
	}

	blank := base
	blank.Description = "  "
	_, err := s.center.UpdateJob(s.ctx, "bob", blank)
	assert.Equal(s.T(), "description must not be empty", fault.Reason(err))

	badCron := base
	badCron.CronExpression = "every day"
	_, err = s.center.UpdateJob(s.ctx, "bob", badCron)
	assert.Equal(s.T(), fault.ValidationFailure, fault.KindOf(err))

	self := base
	self.Dependencies = []uint{7}
	_, err = s.center.UpdateJob(s.ctx, "bob", self)
	assert.Equal(s.T(), fault.ValidationFailure, fault.KindOf(err))

	// job 3 is disabled
	_, err = s.center.UpdateJob(s.ctx, "bob", base)
	assert.Equal(s.T(), fault.GraphConstraintViolation, fault.KindOf(err))

	missing := base
	missing.Dependencies = []uint{3, 55}
	_, err = s.center.UpdateJob(s.ctx, "bob", missing)
	assert.Equal(s.T(), "dependency jobs do not exist: 55", fault.Reason(err))

	require.NoError(s.T(), s.store.SetAuto(s.ctx, 3, true))
	job, err := s.center.UpdateJob(s.ctx, "bob", base)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "loads seven", job.Description)
	assert.Equal(s.T(), "seven", job.Name)

	stored, err := s.store.FindJob(s.ctx, 7)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "echo 7", stored.Script)
	assert.Equal(s.T(), []uint{3}, []uint(stored.Dependencies))
}

func (s *CenterTestSuite) TestUpdateIndependentJobDropsDependencies() {
	job, err := s.center.UpdateJob(s.ctx, "bob", JobUpdate{
		ID:           7,
		JobInput:     JobInput{Description: "now cron driven", CronExpression: "@daily"},
		ScheduleType: models.ScheduleTypeIndependent,
		Dependencies: []uint{3},
	})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), job.Dependencies)

	// job 3 can now be deleted
	require.NoError(s.T(), s.center.Delete(s.ctx, "bob", 3, false))
}

func (s *CenterTestSuite) TestUpdateGroup() {
	group, err := s.center.UpdateGroup(s.ctx, "bob", 2, GroupInput{Configs: map[string]string{"queue": "batch"}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "etl", group.Name)

	cfg, err := s.center.InheritedConfig(s.ctx, 3, false)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "batch", cfg["queue"])
}

func (s *CenterTestSuite) TestRunCommandsPublishEvents() {
	testutil.MustCreate(s.T(), s.store.DB(), &models.Action{ID: "2024010100000007", JobID: 7})
	events := s.subscribe()

	_, err := s.center.Execute(s.ctx, "bob", "2024010100000007", models.TriggerTypeManual, "")
	require.NoError(s.T(), err)
	e := <-events
	assert.Equal(s.T(), event.TypeRunDispatched, e.Type)
	assert.Equal(s.T(), uint(7), e.JobID)

	_, err = s.center.Cancel(s.ctx, "bob", 11, 7)
	require.NoError(s.T(), err)
	e = <-events
	assert.Equal(s.T(), event.TypeRunCancelled, e.Type)
	assert.Equal(s.T(), uint(11), e.HistoryID)

	res, err := s.center.GenerateVersion(s.ctx, "bob", 7)
	require.NoError(s.T(), err)
	assert.False(s.T(), res.Completed)

	_, err = s.center.GenerateAllVersions(s.ctx, "bob")
	assert.Equal(s.T(), fault.AuthorizationDenied, fault.KindOf(err))
}

func (s *CenterTestSuite) TestExecuteLatest() {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testutil.MustCreate(s.T(), s.store.DB(),
		&models.Action{ID: models.NewActionID(day, 7), JobID: 7},
		&models.Action{ID: models.NewActionID(day.Add(time.Hour), 7), JobID: 7},
	)

	res, err := s.center.ExecuteLatest(s.ctx, "", 7, "bob")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.NewActionID(day.Add(time.Hour), 7), res.Message)
	assert.Contains(s.T(), s.bridge.calls, "execute "+res.Message+" manual_recover")

	_, err = s.center.ExecuteLatest(s.ctx, "", 3, "bob")
	assert.Equal(s.T(), fault.NotFound, fault.KindOf(err))

	versions, err := s.center.JobVersions(s.ctx, 7)
	require.NoError(s.T(), err)
	assert.Len(s.T(), versions, 2)
}

func (s *CenterTestSuite) TestJobGraph() {
	g, err := s.center.JobGraph(s.ctx, 3, graph.Downstream)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []graph.Edge{{From: 3, To: 7}}, g.Edges)

	g, err = s.center.JobGraph(s.ctx, 3, graph.Upstream)
	require.NoError(s.T(), err)
	assert.Len(s.T(), g.Nodes, 1)
	assert.Empty(s.T(), g.Edges)

	_, err = s.center.JobGraph(s.ctx, 99, graph.Downstream)
	assert.Equal(s.T(), fault.NotFound, fault.KindOf(err))
}

func (s *CenterTestSuite) TestHostGroups() {
	hgs, err := s.center.HostGroups(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), hgs, 1)
	assert.Equal(s.T(), "default", hgs[0].Name)
}

func TestCenterTestSuite(t *testing.T) {
	suite.Run(t, new(CenterTestSuite))
}

func TestParseTargetID(t *testing.T) {
	id, err := ParseTargetID("group_12")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	id, err = ParseTargetID("7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = ParseTargetID("group_")
	assert.Equal(t, fault.ValidationFailure, fault.KindOf(err))
	_, err = ParseTargetID("-3")
	assert.Error(t, err)
}

// End to end through the real bridge and an in-memory peer.
func TestExecuteThroughPeer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(testutil.OpenTestDB(t))
	testutil.MustCreate(t, store.DB(),
		&models.Job{ID: 7, Name: "seven", Owner: "bob", Script: "echo 7"},
		&models.Action{ID: "2024010100000007", JobID: 7},
	)

	peer := testutil.StartPeer(t)
	pool := worker.NewPool(1, 8, time.Second)
	t.Cleanup(func() {
		pool.Close()
		pool.Wait()
	})
	gate := auth.NewGate("admin", store)
	bridge := dispatch.New(peer.Client.Slot(), gate, store, pool, time.Second)
	c := New(store, gate, bridge, nil, Config{})

	res, err := c.Execute(ctx, "bob", "2024010100000007", 0, "")
	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Completed: true, Success: true, Message: "2024010100000007"}, res)

	testutil.AssertCount(t, store.DB(), &models.History{}, 1)
	require.Len(t, peer.Requests(), 1)
}
