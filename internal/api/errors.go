package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tilemm/internal/matmul"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// writeMatmulError maps engine errors to a status and error type. Rejected
// configurations are the caller's to fix, so they are client errors.
func writeMatmulError(c *echo.Context, err error) error {
	var cfgErr *matmul.ConfigError
	var resErr *matmul.ResourceError
	switch {
	case errors.As(err, &cfgErr):
		return writeErrorBody(c, http.StatusBadRequest, ErrorBody{
			Message:    err.Error(),
			Type:       "configuration_error",
			Constraint: cfgErr.Constraint,
		})
	case errors.As(err, &resErr):
		return writeErrorBody(c, http.StatusUnprocessableEntity, ErrorBody{
			Message:    err.Error(),
			Type:       "resource_exhausted",
			Constraint: resErr.Resource,
		})
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return writeErrorBody(c, status, ErrorBody{Message: msg, Type: errType})
}

func writeErrorBody(c *echo.Context, status int, body ErrorBody) error {
	return c.JSON(status, map[string]any{
		"error": body,
	})
}
