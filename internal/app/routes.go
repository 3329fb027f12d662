package app

import (
	"github.com/gin-gonic/gin"
)

// RouterOptions carries the middleware assembled at startup. A nil
// RateLimit leaves the public group unthrottled.
type RouterOptions struct {
	Auth      gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

func (a *App) Router(opts RouterOptions) *gin.Engine {
	if opts.Auth == nil {
		opts.Auth = ProviderAuth(AuthConfig{})
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(a.Logger))

	router.GET("/healthz", a.HealthzHandler)
	router.GET("/readyz", a.ReadyzHandler)

	// OAuth2 callback (must be outside provider auth)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api")
	{
		public := api.Group("/public")
		if opts.RateLimit != nil {
			public.Use(opts.RateLimit)
		}
		public.GET("/slots", a.GetSlotsHandler)
		public.POST("/appointments", a.CreateAppointmentHandler)

		provider := api.Group("/provider", opts.Auth)
		{
			provider.GET("/availability", a.ListAvailabilityHandler)
			provider.POST("/availability", a.CreateAvailabilityHandler)
			provider.PUT("/availability/:id", a.UpdateAvailabilityHandler)
			provider.DELETE("/availability/:id", a.DeleteAvailabilityHandler)

			provider.GET("/appointments", a.ListAppointmentsHandler)
			provider.PATCH("/appointments/:id", a.UpdateAppointmentStatusHandler)

			provider.GET("/calendar/auth", a.GoogleAuthHandler)
			provider.GET("/calendar/conflicts", a.CalendarConflictsHandler)
		}
	}
	return router
}
