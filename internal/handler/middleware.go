package handler

import (
	"auth_service/internal/auth"
	"auth_service/internal/models"
	"auth_service/internal/service"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (models.Identity, error)
}

// AuthMiddleware rejects the request with 401 unless it carries a valid,
// non-blacklisted bearer token. The resolved identity is stored on the
// context.
func AuthMiddleware(authenticator Authenticator, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.AuthMiddleware"

		identity, err := authenticator.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			reason, ok := tokenErrorReason(err)
			if !ok {
				log.Error("failed to authenticate request", slog.String("op", op), slog.Any("error", err))

				newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)

				return
			}

			log.Debug("request rejected", slog.String("op", op), slog.String("reason", reason))

			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, reason, nil)

			return
		}

		c.Set(identityKey, identity)

		c.Next()
	}
}

func identityFromContext(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}

	identity, ok := v.(models.Identity)
	return identity, ok
}

// bearerToken returns "" when the header is absent or not a bearer scheme.
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func tokenErrorReason(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrTokenNotProvided):
		return "Token not provided", true
	case errors.Is(err, service.ErrTokenBlacklisted):
		return "The token has been blacklisted", true
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token has expired", true
	case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrTokenInvalid):
		return "Token is invalid", true
	default:
		return "", false
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("http request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
