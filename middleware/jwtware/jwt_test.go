package jwtware_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portlib/identity/middleware/jwtware"
)

type stubClaims struct {
	id   string
	role string
}

func (s stubClaims) AccountID() string { return s.id }
func (s stubClaims) Role() string      { return s.role }
func (s stubClaims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if r == s.role {
			return true
		}
	}
	return false
}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Use(jwtware.New(cfg))
	app.Get("/protected", func(c *fiber.Ctx) error {
		claims, ok := jwtware.ClaimsFromContext(c, jwtware.DefaultContextKey)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"account_id": claims.AccountID(), "role": claims.Role()})
	})
	return app
}

func validatorFor(token string, claims jwtware.Claims) jwtware.TokenValidator {
	return jwtware.ValidatorFunc(func(raw string) (jwtware.Claims, error) {
		if raw != token {
			return nil, errors.New("bad token")
		}
		return claims, nil
	})
}

func TestMissingAuthorizationHeader(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMalformedScheme(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Basic good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestValidTokenPassesThrough(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCaseInsensitiveScheme(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestInvalidTokenRejected(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer forged")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequiredRolesForbidsWrongRole(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "student"}),
		RequiredRoles:  []string{"admin"},
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequiredRolesAllowsMatch(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
		RequiredRoles:  []string{"admin"},
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestFilterSkipsMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "admin"}),
		Filter:         func(c *fiber.Ctx) bool { return true },
	}))
	app.Get("/open", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/open", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRolesStandalone(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: validatorFor("good", stubClaims{id: "1", role: "librarian"}),
	}))
	app.Use(jwtware.RequireRoles("admin"))
	app.Get("/admin-only", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
