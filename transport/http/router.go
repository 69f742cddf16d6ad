package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService) *gin.Engine {
	router := gin.Default()
	RegisterRoutes(router, authService)
	return router
}

// RegisterRoutes mounts the session, view and API routes on router
func RegisterRoutes(router *gin.Engine, authService *service.AuthService) {
	handlers := NewAppHandlers(authService)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, service.DashboardPath)
	})
	router.GET(service.LoginPath, handlers.LoginView)

	// Session routes
	auth := router.Group(service.LoginPath)
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/session", handlers.Session)
	}

	// Guarded views
	views := router.Group("")
	views.Use(GuardMiddleware(authService))
	for _, route := range authService.Guard().Routes() {
		views.GET(route.Path, handlers.View)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(SessionMiddleware(authService))
	{
		api.GET("/capabilities", handlers.Capabilities)
		api.GET("/overview", handlers.Overview)
		api.POST("/refresh", handlers.Refresh)
		api.POST("/actions/:function", handlers.Submit)
		api.POST("/verify-identity", handlers.VerifyIdentity)
	}
}
