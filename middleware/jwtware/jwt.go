package jwtware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrForbidden             = errors.New("insufficient role")
)

// DefaultContextKey is where validated claims land in the request locals.
const DefaultContextKey = "session"

// Claims is the validated session payload. It mirrors the token service's
// claims type without importing it, which keeps this package free of cycles.
type Claims interface {
	AccountID() string
	Role() string
	HasAnyRole(roles ...string) bool
}

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator interface {
	Validate(raw string) (Claims, error)
}

// ValidatorFunc adapts a function to the TokenValidator interface.
type ValidatorFunc func(raw string) (Claims, error)

func (f ValidatorFunc) Validate(raw string) (Claims, error) { return f(raw) }

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(*fiber.Ctx) bool
	// ErrorHandler renders validation failures. Defaults to a JSON 401.
	ErrorHandler func(*fiber.Ctx, error) error
	// TokenValidator is required.
	TokenValidator TokenValidator
	// ContextKey stores the claims in ctx.Locals. Defaults to "session".
	ContextKey string
	// AuthScheme is the expected Authorization prefix. Defaults to "Bearer".
	AuthScheme string
	// RequiredRoles, when set, rejects tokens whose role is not in the list.
	RequiredRoles []string
}

func GetDefaultConfig(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

// New returns a fiber middleware that authenticates requests with a bearer
// token and optionally authorizes the session role.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if len(cfg.RequiredRoles) > 0 && !claims.HasAnyRole(cfg.RequiredRoles...) {
			return cfg.ErrorHandler(c, ErrForbidden)
		}

		c.Locals(cfg.ContextKey, claims)

		return c.Next()
	}
}

// RequireRoles authorizes an already-authenticated request. Mount it after
// New so the claims are present in locals.
func RequireRoles(roles ...string) fiber.Handler {
	return RequireRolesWithKey(DefaultContextKey, roles...)
}

func RequireRolesWithKey(contextKey string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c, contextKey)
		if !ok {
			return defaultErrorHandler(c, ErrJWTMissingOrMalformed)
		}
		if !claims.HasAnyRole(roles...) {
			return defaultErrorHandler(c, ErrForbidden)
		}
		return c.Next()
	}
}

// ClaimsFromContext retrieves the validated claims stored by New.
func ClaimsFromContext(c *fiber.Ctx, contextKey string) (Claims, bool) {
	claims, ok := c.Locals(contextKey).(Claims)
	return claims, ok
}

// ExtractRawToken pulls the bearer token out of the Authorization header.
func ExtractRawToken(c *fiber.Ctx, authScheme string) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrJWTMissingOrMalformed
	}

	if authScheme == "" {
		return header, nil
	}

	prefix := authScheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrJWTMissingOrMalformed
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}

	return token, nil
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	if errors.Is(err, ErrForbidden) {
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
