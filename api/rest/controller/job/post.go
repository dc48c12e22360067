package job

import (
	"net/http"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

// Post creates a job in the group named by the path.
func (ctrl *Controller) Post(c echo.Context) error {
	groupID, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &center.JobInput{}
	if err := c.Bind(req); err != nil {
		return err
	}

	j, err := ctrl.center.AddJob(c.Request().Context(), controller.Actor(c), groupID, *req)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusCreated, j)
}

// Switch flips the enabled flag of a job.
func (ctrl *Controller) Switch(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	j, err := ctrl.center.ToggleEnabled(c.Request().Context(), controller.Actor(c), id)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, j)
}
