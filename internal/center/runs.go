package center

import (
	"context"

	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/models"
)

// Execute runs an action on the peer on behalf of actor, or of owner
// when one is supplied.
func (c *Center) Execute(ctx context.Context, actor, actionID string, trigger models.TriggerType, owner string) (dispatch.Result, error) {
	res, err := c.bridge.Execute(ctx, dispatch.ExecuteRequest{
		ActionID:    actionID,
		TriggerType: trigger,
		Actor:       actor,
		Owner:       owner,
	})
	if err != nil {
		return res, err
	}

	e := event.Event{Type: event.TypeRunDispatched, Actor: actor}
	if action, err := c.store.FindAction(ctx, actionID); err == nil {
		e.JobID = action.JobID
	}
	c.publish(e)
	return res, nil
}

// ExecuteLatest re-runs the newest action of a job as a manual
// recovery.
func (c *Center) ExecuteLatest(ctx context.Context, actor string, jobID uint, owner string) (dispatch.Result, error) {
	action, err := c.store.LatestAction(ctx, jobID)
	if err != nil {
		return dispatch.Result{}, lookupFailure(err, "job %d has no actions", jobID)
	}
	return c.Execute(ctx, actor, action.ID, models.TriggerTypeManualRecover, owner)
}

func (c *Center) Cancel(ctx context.Context, actor string, historyID, jobID uint) (dispatch.Result, error) {
	res, err := c.bridge.Cancel(ctx, dispatch.CancelRequest{HistoryID: historyID, JobID: jobID, Actor: actor})
	if err != nil {
		return res, err
	}
	c.publish(event.Event{Type: event.TypeRunCancelled, JobID: jobID, HistoryID: historyID, Actor: actor})
	return res, nil
}

func (c *Center) GenerateVersion(ctx context.Context, actor string, jobID uint) (dispatch.Result, error) {
	res, err := c.bridge.GenerateVersion(ctx, actor, jobID)
	if err != nil {
		return res, err
	}
	c.publish(event.Event{Type: event.TypeVersionGenerated, JobID: jobID, Actor: actor})
	return res, nil
}

func (c *Center) GenerateAllVersions(ctx context.Context, actor string) (dispatch.Result, error) {
	res, err := c.bridge.GenerateAllVersions(ctx, actor)
	if err != nil {
		return res, err
	}
	c.publish(event.Event{Type: event.TypeVersionGenerated, Actor: actor})
	return res, nil
}

var _ Dispatcher = (*dispatch.Bridge)(nil)

