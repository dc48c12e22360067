package event

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/labstack/echo/v4"
)

// keepAlive is how often an idle stream is pinged.
var keepAlive = 15 * time.Second

type Controller struct {
	bus event.Bus
}

func New(bus event.Bus) *Controller {
	return &Controller{bus: bus}
}

// Stream relays center changes as server-sent events, optionally
// narrowed by job_id, group_id and a comma separated types list.
func (ctrl *Controller) Stream(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	ch, err := ctrl.bus.Subscribe(ctx, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")

	if _, err := fmt.Fprintf(c.Response(), ": ping\n\n"); err != nil {
		return nil
	}
	c.Response().Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprintf(c.Response(), ": ping\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		case e, ok := <-ch:
			if !ok {
				return nil
			}

			data, err := json.Marshal(e)
			if err != nil {
				log.Error("failed to marshal event for stream", "type", e.Type, "error", err)
				continue
			}

			if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

func parseFilter(c echo.Context) (event.Filter, error) {
	filter := event.Filter{}

	for name, dst := range map[string]*uint{
		"job_id":   &filter.JobID,
		"group_id": &filter.GroupID,
	} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
		*dst = uint(id)
	}

	if types := c.QueryParam("types"); types != "" {
		for _, s := range strings.Split(types, ",") {
			filter.Types = append(filter.Types, event.Type(strings.TrimSpace(s)))
		}
	}

	return filter, nil
}
