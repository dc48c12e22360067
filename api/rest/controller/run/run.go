// Package run serves the commands relayed to the worker peer. Each
// answers 200 once the peer replied and 202 when the wait expired.
package run

import (
	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	center *center.Center
}

func New(c *center.Center) *Controller {
	return &Controller{center: c}
}

// ExecuteRequest selects how a run is recorded. TriggerType uses the
// stored history values: 2 (or omitted) is a manual run, 3 a manual
// recovery. Schedule (1) is reserved for the worker and is rejected.
// Owner executes on behalf of that identity.
type ExecuteRequest struct {
	TriggerType models.TriggerType `json:"trigger_type"`
	Owner       string             `json:"owner"`
}

// Execute runs the action named by the path.
func (ctrl *Controller) Execute(c echo.Context) error {
	req := &ExecuteRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	res, err := ctrl.center.Execute(c.Request().Context(), controller.Actor(c), c.Param("id"), req.TriggerType, req.Owner)
	if err != nil {
		return controller.Failure(err)
	}
	return controller.Result(c, res)
}

// ExecuteLatest re-runs the newest action of the job named by the path.
func (ctrl *Controller) ExecuteLatest(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &ExecuteRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	res, err := ctrl.center.ExecuteLatest(c.Request().Context(), controller.Actor(c), id, req.Owner)
	if err != nil {
		return controller.Failure(err)
	}
	return controller.Result(c, res)
}

type CancelRequest struct {
	JobID uint `json:"job_id"`
}

func (ctrl *Controller) Cancel(c echo.Context) error {
	historyID, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &CancelRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	res, err := ctrl.center.Cancel(c.Request().Context(), controller.Actor(c), historyID, req.JobID)
	if err != nil {
		return controller.Failure(err)
	}
	return controller.Result(c, res)
}

func (ctrl *Controller) Generate(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	res, err := ctrl.center.GenerateVersion(c.Request().Context(), controller.Actor(c), id)
	if err != nil {
		return controller.Failure(err)
	}
	return controller.Result(c, res)
}

func (ctrl *Controller) GenerateAll(c echo.Context) error {
	res, err := ctrl.center.GenerateAllVersions(c.Request().Context(), controller.Actor(c))
	if err != nil {
		return controller.Failure(err)
	}
	return controller.Result(c, res)
}
