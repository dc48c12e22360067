package rest

import (
	"github.com/caesium-cloud/hera/api/rest/bind"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

// Bind the REST endpoints to the versioned endpoint group.
func Bind(group *echo.Group, c *center.Center) {
	bind.All(group, c)
}
