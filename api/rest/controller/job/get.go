package job

import (
	"net/http"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/graph"
	"github.com/labstack/echo/v4"
)

func (ctrl *Controller) Get(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	detail, err := ctrl.center.GetJob(c.Request().Context(), id)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, detail)
}

// Graph returns the upstream or downstream dependency graph of a job,
// selected by the direction query parameter.
func (ctrl *Controller) Graph(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	dir, err := graph.ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	g, err := ctrl.center.JobGraph(c.Request().Context(), id, dir)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, g)
}

// Versions lists the action ids generated for a job.
func (ctrl *Controller) Versions(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	versions, err := ctrl.center.JobVersions(c.Request().Context(), id)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, versions)
}

func (ctrl *Controller) HostGroups(c echo.Context) error {
	hgs, err := ctrl.center.HostGroups(c.Request().Context())
	if err != nil {
		return controller.Failure(err)
	}
	return c.JSON(http.StatusOK, hgs)
}
