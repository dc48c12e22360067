package bind

import (
	"github.com/caesium-cloud/hera/api/rest/controller/event"
	"github.com/caesium-cloud/hera/api/rest/controller/group"
	"github.com/caesium-cloud/hera/api/rest/controller/job"
	"github.com/caesium-cloud/hera/api/rest/controller/run"
	"github.com/caesium-cloud/hera/api/rest/controller/target"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/labstack/echo/v4"
)

func All(g *echo.Group, c *center.Center) {
	Jobs(g, job.New(c))
	Groups(g, group.New(c))
	Targets(g.Group("/targets"), target.New(c))
	Runs(g, run.New(c))

	g.GET("/events", event.New(c.Bus()).Stream)
}

func Jobs(g *echo.Group, ctrl *job.Controller) {
	g.GET("/jobs/:id", ctrl.Get)
	g.PUT("/jobs/:id", ctrl.Put)
	g.POST("/jobs/:id/switch", ctrl.Switch)
	g.GET("/jobs/:id/versions", ctrl.Versions)
	g.GET("/jobs/:id/graph", ctrl.Graph)
	g.POST("/groups/:id/jobs", ctrl.Post)
	g.GET("/host-groups", ctrl.HostGroups)
}

func Groups(g *echo.Group, ctrl *group.Controller) {
	g.GET("/groups/:id", ctrl.Get)
	g.PUT("/groups/:id", ctrl.Put)
	g.POST("/groups/:id/groups", ctrl.Post)
}

// Targets accept either a job id or a group_<n> id.
func Targets(g *echo.Group, ctrl *target.Controller) {
	g.DELETE("/:id", ctrl.Delete)
	g.GET("/:id/config", ctrl.Config)
	g.GET("/:id/permissions", ctrl.Permissions)
	g.PUT("/:id/permissions", ctrl.PutPermissions)
}

func Runs(g *echo.Group, ctrl *run.Controller) {
	g.POST("/actions/:id/execute", ctrl.Execute)
	g.POST("/jobs/:id/execute", ctrl.ExecuteLatest)
	g.POST("/histories/:id/cancel", ctrl.Cancel)
	g.POST("/jobs/:id/versions", ctrl.Generate)
	g.POST("/versions", ctrl.GenerateAll)
}
