// Package target serves the endpoints addressing either a job or a
// group. Group ids are written group_<n>.
package target

import (
	"net/http"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	center *center.Center
}

func New(c *center.Center) *Controller {
	return &Controller{center: c}
}

func (ctrl *Controller) Delete(c echo.Context) error {
	id, isGroup, err := controller.TargetID(c, "id")
	if err != nil {
		return err
	}

	if err := ctrl.center.Delete(c.Request().Context(), controller.Actor(c), id, isGroup); err != nil {
		return controller.Failure(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// Config returns the configuration inherited from the group tree.
func (ctrl *Controller) Config(c echo.Context) error {
	id, isGroup, err := controller.TargetID(c, "id")
	if err != nil {
		return err
	}

	cfg, err := ctrl.center.InheritedConfig(c.Request().Context(), id, isGroup)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, cfg)
}

func (ctrl *Controller) Permissions(c echo.Context) error {
	id, isGroup, err := controller.TargetID(c, "id")
	if err != nil {
		return err
	}

	uids, err := ctrl.center.Operators(c.Request().Context(), controller.Actor(c), id, isGroup)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, PermissionRequest{UIDs: uids})
}

type PermissionRequest struct {
	UIDs []string `json:"uids"`
}

// PutPermissions replaces the operator entries of the target.
func (ctrl *Controller) PutPermissions(c echo.Context) error {
	id, isGroup, err := controller.TargetID(c, "id")
	if err != nil {
		return err
	}

	req := &PermissionRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	if err := ctrl.center.UpdatePermission(c.Request().Context(), controller.Actor(c), id, isGroup, req.UIDs); err != nil {
		return controller.Failure(err)
	}

	return c.NoContent(http.StatusNoContent)
}
