package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig lists the origins, methods, and headers the API answers
// cross-origin requests with.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// CORS stamps the configured CORS headers on matching requests and
// short-circuits preflight OPTIONS calls.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get("Origin")

			if len(cfg.AllowOrigins) > 0 && !originAllowed(cfg.AllowOrigins, origin) {
				return next(c)
			}

			header := c.Response().Header()
			if origin != "" {
				header.Set("Access-Control-Allow-Origin", origin)
			} else if len(cfg.AllowOrigins) > 0 && cfg.AllowOrigins[0] == "*" {
				header.Set("Access-Control-Allow-Origin", "*")
			}
			setJoined(header, "Access-Control-Allow-Methods", cfg.AllowMethods)
			setJoined(header, "Access-Control-Allow-Headers", cfg.AllowHeaders)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

func setJoined(h http.Header, key string, vals []string) {
	if len(vals) > 0 {
		h.Set(key, strings.Join(vals, ", "))
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
