package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
)

// GuardMiddleware runs the route guard for view routes. Denied navigation is
// redirected without an error body.
func GuardMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		verdict := authService.Navigate(c.Request.Context(), c.FullPath())
		if !verdict.Allowed {
			c.Redirect(http.StatusFound, verdict.RedirectTo)
			c.Abort()
			return
		}

		c.Set(viewContextKey, authService.View(c.Request.Context()))
		c.Next()
	}
}

// SessionMiddleware rejects API calls without an authenticated session
func SessionMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := authService.View(c.Request.Context())
		if view.State != core.StateAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.UserMessage(core.ErrNotAuthenticated)})
			return
		}

		c.Set(viewContextKey, view)
		c.Next()
	}
}
