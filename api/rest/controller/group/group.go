package group

import (
	"net/http"

	"github.com/caesium-cloud/hera/api/rest/controller"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

// Controller serves the group endpoints.
type Controller struct {
	center *center.Center
}

func New(c *center.Center) *Controller {
	return &Controller{center: c}
}

func (ctrl *Controller) Get(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	detail, err := ctrl.center.GetGroup(c.Request().Context(), id)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, detail)
}

// Post creates a child of the group named by the path; 0 is the root.
func (ctrl *Controller) Post(c echo.Context) error {
	parentID, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &center.GroupInput{}
	if err := c.Bind(req); err != nil {
		return err
	}

	g, err := ctrl.center.AddGroup(c.Request().Context(), controller.Actor(c), parentID, *req)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusCreated, g)
}

func (ctrl *Controller) Put(c echo.Context) error {
	id, err := controller.ID(c, "id")
	if err != nil {
		return err
	}

	req := &center.GroupInput{}
	if err := c.Bind(req); err != nil {
		return err
	}

	g, err := ctrl.center.UpdateGroup(c.Request().Context(), controller.Actor(c), id, *req)
	if err != nil {
		return controller.Failure(err)
	}

	return c.JSON(http.StatusOK, g)
}
