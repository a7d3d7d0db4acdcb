// Package middleware provides authentication, logging, tracing and rate limiting middleware.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"quill/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token claims shared with the issuer in the auth service.
const (
	TokenIssuer   = "quill-api"
	TokenAudience = "quill-client"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errNoToken      = fiber.NewError(fiber.StatusUnauthorized, "Authorization header required")
	errBadScheme    = fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
	errInvalidToken = fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	errBadSubject   = fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
)

// ParseToken validates an HS256 token issued by this API and returns the
// user ID held in its subject.
func ParseToken(raw string) (uint, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return 0, errInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, errInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, errBadSubject
	}
	return uint(id), nil
}

// tokenSource pulls a raw token out of a request. An empty string with a nil
// error means the source had nothing to offer.
type tokenSource func(c *fiber.Ctx) (string, error)

func fromHeader(c *fiber.Ctx) (string, error) {
	h := c.Get(fiber.HeaderAuthorization)
	if h == "" {
		return "", nil
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" || strings.Contains(token, " ") {
		return "", errBadScheme
	}
	return token, nil
}

func fromQuery(c *fiber.Ctx) (string, error) {
	return c.Query("token"), nil
}

// resolveUser tries each source in order and validates the first token found.
func resolveUser(c *fiber.Ctx, sources ...tokenSource) (uint, error) {
	for _, src := range sources {
		token, err := src(c)
		if err != nil {
			return 0, err
		}
		if token != "" {
			return ParseToken(token)
		}
	}
	return 0, errNoToken
}

// setUser stores the caller in fiber locals and in the user context for the logger.
func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
}

func requireUser(sources ...tokenSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := resolveUser(c, sources...)
		if err != nil {
			msg := "Unauthorized"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				msg = fe.Message
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
				"code":  "UNAUTHORIZED",
			})
		}
		setUser(c, userID)
		return c.Next()
	}
}

// AuthRequired rejects requests without a valid bearer token.
var AuthRequired = requireUser(fromHeader)

// WebSocketAuthRequired accepts the token as ?token= because browsers cannot
// set headers on a websocket handshake. The Authorization header still works.
var WebSocketAuthRequired = requireUser(fromQuery, fromHeader)

// OptionalAuth identifies the caller when a valid bearer token is present.
// Anything else, including a bad token, proceeds anonymously.
func OptionalAuth(c *fiber.Ctx) error {
	if userID, err := resolveUser(c, fromHeader); err == nil {
		setUser(c, userID)
	}
	return c.Next()
}
