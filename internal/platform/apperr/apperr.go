// Package apperr carries the error kinds services return and their mapping to
// HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/mfl/mfl/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid request")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Invalid returns a validation error whose message is shown to the caller.
func Invalid(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalid, msg: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &kindError{kind: ErrNotFound, msg: what + " not found"}
}

func Conflict(format string, args ...interface{}) error {
	return &kindError{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &kindError{kind: ErrForbidden, msg: fmt.Sprintf(format, args...)}
}

// NoRows turns pgx.ErrNoRows into a NotFound for what and wraps anything else.
func NoRows(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalid), db.IsForeignKeyViolation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), db.IsUniqueViolation(err):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts a service error to an echo.HTTPError. Internal errors are not
// echoed back to the caller.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := Status(err)
	switch {
	case status == http.StatusInternalServerError:
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	case db.IsUniqueViolation(err):
		return echo.NewHTTPError(status, "a record with these values already exists").SetInternal(err)
	case db.IsForeignKeyViolation(err):
		return echo.NewHTTPError(status, "referenced record does not exist").SetInternal(err)
	default:
		return echo.NewHTTPError(status, err.Error())
	}
}

// ErrorHandler renders every error as {"detail": message}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := HTTP(err).(*echo.HTTPError)
	if !ok {
		he = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	body := map[string]interface{}{"detail": he.Message}
	if m, ok := he.Message.(map[string]interface{}); ok {
		body = m
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = c.JSON(he.Code, body)
}
