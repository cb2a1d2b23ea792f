package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"todocal/internal/auth"
	"todocal/internal/errors"
)

// ClaimsContextKey is where the auth middleware stores the verified *auth.Claims.
const ClaimsContextKey = "user"

// fail converts a service error into an HTTP error with the standard body.
// The original error is attached as Internal so the error handler can log it.
func fail(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  "INVALID_ARGUMENT",
	})
}

func claimsFrom(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ClaimsContextKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, fail(errors.ErrUnauthenticated)
	}
	return claims, nil
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid id")
	}
	return uint(id), nil
}
