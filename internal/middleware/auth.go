package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/auth"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

const ContextPrincipal = "principal"

// principalCacheTTL bounds how stale a cached principal can be. A
// deactivated user keeps working for at most this long.
const principalCacheTTL = 30 * time.Second

type AuthMiddleware struct {
	authSvc *auth.Service
	cache   *cache.Cache
}

func NewAuthMiddleware(authSvc *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authSvc: authSvc,
		cache:   cache.New(principalCacheTTL, time.Minute),
	}
}

// Authenticate verifies the bearer token and resolves the principal through
// the user directory, caching the result briefly. The role always comes
// from the directory record, never from token claims.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}
		token := parts[1]

		if cached, ok := m.cache.Get(token); ok {
			c.Set(ContextPrincipal, cached.(model.Principal))
			c.Next()
			return
		}

		principal, err := m.authSvc.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		m.cache.SetDefault(token, *principal)
		c.Set(ContextPrincipal, *principal)
		c.Next()
	}
}

// RequireRoles gates a route to the named roles. Runs after Authenticate.
func (m *AuthMiddleware) RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortUnauthorized(c, "not authenticated")
			return
		}

		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, httputil.Response{
			Success: false,
			Error: &httputil.Error{
				Code:    http.StatusForbidden,
				Message: "role " + string(principal.Role) + " is not authorized to access this route",
			},
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	principal, ok := v.(model.Principal)
	return principal, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.Response{
		Success: false,
		Error: &httputil.Error{
			Code:    http.StatusUnauthorized,
			Message: message,
		},
	})
}
