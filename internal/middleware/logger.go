package middleware

import (
    "fmt"
    "net/http"
    "runtime/debug"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger writes one entry per request after the error handler has
// produced the final status.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            fields := []zap.Field{
                zap.String("method", c.Request().Method),
                zap.String("route", c.Path()),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
                zap.String("user_id", userID(c)),
            }
            switch {
            case status >= http.StatusInternalServerError:
                log.Error("request", append(fields, zap.Error(err))...)
            case status >= http.StatusBadRequest:
                log.Info("request", fields...)
            default:
                log.Debug("request", fields...)
            }
            return nil
        }
    }
}

// Recover turns a panic in a handler into a 500 and logs the stack.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) (err error) {
            defer func() {
                if r := recover(); r != nil {
                    log.Error("panic recovered",
                        zap.Any("panic", r),
                        zap.ByteString("stack", debug.Stack()),
                        zap.String("method", c.Request().Method),
                        zap.String("path", c.Request().URL.Path))
                    err = fmt.Errorf("panic: %v", r)
                }
            }()
            return next(c)
        }
    }
}
