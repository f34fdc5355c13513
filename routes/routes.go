package routes

import (
	"net/http"
	"time"

	"tutorly/handlers"
	"tutorly/middleware"
	"tutorly/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers booking endpoints.
func RegisterSessionRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/sessions")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("", middleware.RequireRole(models.RoleStudent), hb.BookSessionHandler)
		api.GET("", hb.ListSessionsHandler)
		api.GET("/upcoming", hb.UpcomingSessionsHandler)
		api.GET("/:sessionID", hb.GetSessionHandler)
		api.PATCH("/:sessionID", hb.UpdateSessionHandler)
		api.DELETE("/:sessionID", hb.CancelSessionHandler)
	}
}

// RegisterAvailabilityRoutes registers teacher availability endpoints.
func RegisterAvailabilityRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/availability")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("", middleware.RequireRole(models.RoleTeacher), hb.AddAvailabilityHandler)
		api.DELETE("/:slotID", middleware.RequireRole(models.RoleTeacher), hb.RemoveAvailabilityHandler)
		api.GET("/teacher/:teacherID", hb.TeacherAvailabilityHandler)
	}

	teachers := r.Group("/api/teachers")
	{
		teachers.Use(middleware.JWTAuthMiddleware())
		teachers.GET("", hb.ListTeachersHandler)
	}
}

// RegisterCalendarRoutes registers provider connection endpoints. OAuth
// callbacks are public: the providers redirect the browser there without a
// bearer token, identity rides in the state parameter.
func RegisterCalendarRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	google := r.Group("/api/calendar/google")
	{
		google.GET("/callback", hb.GoogleCallbackHandler)

		protected := google.Group("")
		protected.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleTeacher))
		protected.GET("/connect", hb.GoogleConnectHandler)
		protected.GET("/status", hb.GoogleStatusHandler)
		protected.DELETE("/disconnect", hb.GoogleDisconnectHandler)
	}

	calendly := r.Group("/api/calendar/calendly")
	{
		calendly.GET("/callback", hb.CalendlyCallbackHandler)
		calendly.POST("/webhook", hb.CalendlyWebhookHandler)

		protected := calendly.Group("")
		protected.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleTeacher))
		protected.GET("/connect", hb.CalendlyConnectHandler)
		protected.GET("/status", hb.CalendlyStatusHandler)
		protected.DELETE("/disconnect", hb.CalendlyDisconnectHandler)
		protected.GET("/event-types", hb.CalendlyEventTypesHandler)
		protected.GET("/available-times", hb.CalendlyAvailableTimesHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterSessionRoutes(r, hb)
	RegisterAvailabilityRoutes(r, hb)
	RegisterCalendarRoutes(r, hb)
}
