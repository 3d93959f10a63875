package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *JWTService) {
	t.Helper()
	j := newTestJWT(time.Now())
	m := NewAuthMiddleware(j)

	app := fiber.New()
	api := app.Group("/api", m.Authenticate())
	api.Get("/whoami", func(c *fiber.Ctx) error {
		a, ok := GetAuthContext(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(a.OwnerID.String())
	})
	api.Get("/memory", m.RequireScope(scopes.ScopeMemoryRead), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, j
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	app, j := newTestApp(t)
	token, err := j.GenerateAccessToken("owner-7", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := do(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticate_Cookie(t *testing.T) {
	app, j := newTestApp(t)
	token, err := j.GenerateAccessToken("owner-7", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	resp := do(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticate_MissingOrInvalid(t *testing.T) {
	app, _ := newTestApp(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireScope(t *testing.T) {
	app, j := newTestApp(t)

	cases := []struct {
		name   string
		scopes []string
		want   int
	}{
		{"exact", []string{scopes.ScopeMemoryRead}, http.StatusNoContent},
		{"domain wildcard", []string{scopes.ScopeMemoryAll}, http.StatusNoContent},
		{"super scope", []string{scopes.ScopeAll}, http.StatusNoContent},
		{"unrelated", []string{scopes.ScopeChatSend}, http.StatusForbidden},
		{"none", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := j.GenerateAccessToken("owner-1", map[string]any{"scopes": tc.scopes})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/memory", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp := do(t, app, req)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
