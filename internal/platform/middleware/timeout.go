package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type TimeoutConfig struct {
	Timeout time.Duration
	// Routes overrides Timeout by route template. A non-positive value
	// disables the deadline for that route.
	Routes map[string]time.Duration
}

func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return RequestTimeoutWithConfig(TimeoutConfig{Timeout: timeout})
}

// RequestTimeoutWithConfig puts a deadline on the request context. Queries
// issued with that context are cancelled when it passes and the handler's
// error becomes a 504.
func RequestTimeoutWithConfig(cfg TimeoutConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := cfg.Timeout
			if override, ok := cfg.Routes[c.Path()]; ok {
				d = override
			}
			if d <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
			}
			return err
		}
	}
}
