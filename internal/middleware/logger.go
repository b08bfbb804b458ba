package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with zap.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo's error handler write the response first so the
				// logged status matches what the client saw.
				c.Error(err)
			}
			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if id := currentUserID(c); id != "anon" {
				fields = append(fields, zap.String("user_id", id))
			}
			switch s := c.Response().Status; {
			case s >= 500:
				logger.Error("request", append(fields, zap.Error(err))...)
			case s >= 400:
				logger.Info("request", fields...)
			default:
				logger.Debug("request", fields...)
			}
			return nil
		}
	}
}
