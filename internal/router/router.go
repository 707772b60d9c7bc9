package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/handler"
	"github.com/bioscout-islamabad/bioscout/internal/metrics"
	"github.com/bioscout-islamabad/bioscout/internal/middleware"
	"github.com/bioscout-islamabad/bioscout/internal/utils"
)

// Deps are the pieces SetupRouter mounts.
type Deps struct {
	Observations *handler.ObservationHandler
	Insights     *handler.InsightHandler
	Sessions     *handler.SessionHandler
	Tokens       *utils.TokenIssuer
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	// AllowOrigins restricts CORS; empty allows every origin.
	AllowOrigins []string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.HeaderClientID},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(d.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = d.AllowOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.ClientIdentity(d.Tokens), middleware.RequestLogger(d.Log, d.Metrics))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")

	view := api.Group("/view")
	{
		obs := d.Observations
		view.GET("/observations", obs.List)
		view.POST("/observations", obs.Create)
		view.GET("/list", obs.Listing)
		view.GET("/map", obs.Map)
		view.GET("/heatmap", obs.Heatmap)
		view.GET("/filters", obs.Filters)
		view.GET("/locations/suggest", obs.Suggest)
		view.GET("/search", obs.Search)
		view.POST("/refresh", obs.Refresh)

		ins := d.Insights
		view.POST("/classify", ins.Classify)
		view.POST("/qa", ins.Ask)
		view.GET("/analytics", ins.Analytics)
		view.GET("/gamification", ins.Gamification)
		view.GET("/dashboard/:username", ins.Dashboard)
		view.GET("/recents/classifications", ins.RecentClassifications)
		view.GET("/recents/questions", ins.PreviousQuestions)
	}

	session := api.Group("/session")
	{
		s := d.Sessions
		session.POST("/register", s.Register)
		session.POST("/login", s.Login)
		session.GET("/me", s.Me)
		session.GET("/observer", s.ObserverName)
		session.PUT("/observer", s.SetObserverName)

		protected := session.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.POST("/logout", s.Logout)
		}
	}

	return r
}
