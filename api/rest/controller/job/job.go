package job

import (
	"github.com/caesium-cloud/hera/internal/center"
)

// Controller serves the job endpoints.
type Controller struct {
	center *center.Center
}

func New(c *center.Center) *Controller {
	return &Controller{center: c}
}
