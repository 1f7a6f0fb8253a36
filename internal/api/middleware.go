package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/banking/batch-analysis/internal/pkg/logger"
)

// subjectContextKey is the echo context key holding the authenticated subject
const subjectContextKey = "subject"

// JWTAuth validates HMAC-signed bearer tokens and stores the sub claim on the
// echo context and the request context
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				return unauthorized(c, "invalid authorization header format")
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return unauthorized(c, "invalid or expired token")
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				return unauthorized(c, "token has no subject")
			}

			c.Set(subjectContextKey, subject)
			ctx := context.WithValue(c.Request().Context(), logger.SubjectKey, subject)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, message)
}

// RequestContext extracts incoming trace headers and copies the request and
// trace ids into the request context for logging
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = context.WithValue(ctx, logger.RequestIDKey, id)
			}
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				ctx = context.WithValue(ctx, logger.TraceIDKey, sc.TraceID().String())
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// RequestLogger logs one line per request through zap
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if subject, ok := c.Get(subjectContextKey).(string); ok {
				fields = append(fields, zap.String("subject", subject))
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				log.Warn("request", fields...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
