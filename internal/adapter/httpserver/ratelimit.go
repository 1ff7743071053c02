package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/pscheid92/leavenotify/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// endpointKey identifies the route rather than the caller: the API only
// listens on loopback, so every request shares one remote address.
func endpointKey(c echo.Context) (string, error) {
	return c.Request().Method + " " + c.Path(), nil
}

// newRateLimiter limits each mutating endpoint on its own. Denied requests
// surface as rate_limited errors through the error middleware.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: endpointKey,
		Store:               store,
		DenyHandler: func(_ echo.Context, identifier string, _ error) error {
			return apperrors.RateLimitedError("too many requests").WithField("endpoint", identifier)
		},
	})
}
