package job

import (
	"net/http"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

func (ctrl *Controller) Put(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &center.JobUpdate{}
	if err := c.Bind(req); err != nil {
		return err
	}
	req.ID = id

	j, err := ctrl.center.UpdateJob(c.Request().Context(), controller.Actor(c), *req)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, j)
}
