package auth

import (
	"slices"
	"strings"

	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

type AuthMiddleware struct {
	tokenService TokenService
}

func NewAuthMiddleware(tokenService TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate accepts a bearer token from the Authorization header or the
// access_token cookie and stores the caller in c.Locals("auth").
func (am *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			token = c.Cookies("access_token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": ErrUnauthorized().Error(),
			})
		}

		claims, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		authContext := &kernel.AuthContext{
			OwnerID:  claims.OwnerID,
			Email:    claims.Email,
			Name:     claims.Name,
			Scopes:   claims.Scopes,
			ClientIP: c.IP(),
		}

		c.Locals("auth", authContext)
		return c.Next()
	}
}

// RequireScope - Requires a specific scope
func (am *AuthMiddleware) RequireScope(scope string) fiber.Handler {
	return am.RequireAnyScope(scope)
}

// RequireAnyScope - Requires any of the provided scopes
func (am *AuthMiddleware) RequireAnyScope(required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := GetAuthContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if !HasAnyScope(authContext, required...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":           "Insufficient permissions",
				"required_scopes": required,
			})
		}

		return c.Next()
	}
}

// HasAnyScope reports whether the caller holds a scope covering any of required.
func HasAnyScope(a *kernel.AuthContext, required ...string) bool {
	if a == nil {
		return false
	}
	for _, r := range required {
		if slices.ContainsFunc(a.Scopes, func(g string) bool { return scopes.Grants(g, r) }) {
			return true
		}
	}
	return false
}

// Helper functions
func extractBearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetAuthContext helper to extract auth context from Fiber
func GetAuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	authContext, ok := c.Locals("auth").(*kernel.AuthContext)
	return authContext, ok && authContext != nil && !authContext.OwnerID.IsEmpty()
}
