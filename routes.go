package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/controllers"
	"github.com/kendall-kelly/servicepro-api/metrics"
	"github.com/kendall-kelly/servicepro-api/middleware"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// router builds the HTTP API
func (app *application) router() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(app.logger),
		metrics.Middleware(),
		cors.New(corsConfig(app.cfg.CORSOrigins)),
	)

	router.GET("/health", healthCheck)
	router.GET("/metrics", metrics.Handler())

	users := controllers.NewUserController(app.users, app.userInfo, app.logger)
	customers := controllers.NewCustomerController(app.customers)
	jobs := controllers.NewJobController(app.jobs, app.images, app.reports, app.logger)
	billing := controllers.NewBillingController(app.billing)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)

		if app.tokens != nil {
			v1.POST("/auth/signup", users.Signup)
			v1.POST("/auth/login", users.Login)
		}
		if app.externalAuth != nil {
			v1.POST("/users/external", app.externalAuth, users.CreateExternalUser)
		}

		authed := v1.Group("")
		authed.Use(app.authChain...)
		{
			authed.GET("/users/me", users.GetMyProfile)
			authed.PUT("/users/me", users.UpdateMyProfile)
			authed.GET("/technicians", users.ListTechnicians)

			admin := authed.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/staff", users.ListStaff)
				admin.POST("/staff", users.AddStaff)
				admin.PUT("/users/:id/role", users.UpdateRole)
			}

			authed.GET("/customers", customers.List)
			authed.POST("/customers", customers.Create)
			authed.GET("/customers/:id", customers.Get)

			authed.GET("/jobs", jobs.List)
			authed.POST("/jobs", jobs.Create)
			authed.GET("/jobs/export", jobs.Export)
			authed.GET("/jobs/:id", jobs.Get)
			authed.PUT("/jobs/:id", jobs.Update)
			authed.DELETE("/jobs/:id", jobs.Delete)
			authed.POST("/jobs/:id/pickup", jobs.MarkAsPickedUp)
			authed.POST("/jobs/:id/images", jobs.UploadImage)
			authed.GET("/jobs/:id/qrcode", jobs.QRCode)

			authed.GET("/jobs/:id/invoice", billing.Invoice)
			authed.POST("/jobs/:id/payment-intent", billing.CreatePaymentIntent)
			authed.POST("/jobs/:id/payments", billing.RecordPayment)
		}
	}

	return router
}

// healthCheck handles the liveness endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "ServicePro API is running",
	})
}
