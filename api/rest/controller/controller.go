// Package controller holds what the REST controllers share: caller
// identity, id parsing and the mapping of center failures onto HTTP
// statuses.
package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/caesium-cloud/hera/internal/center"
	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/fault"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/labstack/echo/v4"
)

// HeaderUser carries the identity resolved by the upstream gateway.
const HeaderUser = "X-Hera-User"

// Actor returns the identity acting on the request.
func Actor(c echo.Context) string {
	return c.Request().Header.Get(HeaderUser)
}

// ID parses a numeric path parameter.
func ID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name).SetInternal(err)
	}
	return uint(id), nil
}

// TargetID parses an id that may name a group as group_<n>.
func TargetID(c echo.Context, name string) (id uint, isGroup bool, err error) {
	raw := c.Param(name)
	if id, err = center.ParseTargetID(raw); err != nil {
		return 0, false, Failure(err)
	}
	return id, strings.HasPrefix(raw, "group_"), nil
}

var statuses = map[fault.Kind]int{
	fault.AuthorizationDenied:      http.StatusForbidden,
	fault.ValidationFailure:        http.StatusBadRequest,
	fault.GraphConstraintViolation: http.StatusConflict,
	fault.ConnectivityFailure:      http.StatusServiceUnavailable,
	fault.NotFound:                 http.StatusNotFound,
	fault.Internal:                 http.StatusInternalServerError,
}

// Failure converts a center error into the HTTP error returned to the
// caller. Only the reason is exposed; the cause stays internal.
func Failure(err error) *echo.HTTPError {
	kind := fault.KindOf(err)
	code, ok := statuses[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	if code == http.StatusInternalServerError {
		log.Error("request failure", "error", err)
	}
	return echo.NewHTTPError(code, fault.Reason(err)).SetInternal(err)
}

// Result writes the outcome of a relayed command. Commands still in
// flight when the wait expired answer 202.
func Result(c echo.Context, res dispatch.Result) error {
	if !res.Completed {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}
