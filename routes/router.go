package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/moodlog/config"
	"github.com/cppla/moodlog/controllers"
	"github.com/cppla/moodlog/middleware"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/services"
	"github.com/cppla/moodlog/utils"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config    config.AppConfig
	DB        *gorm.DB
	Moods     *services.MoodService
	Users     *repository.UserRepository
	Blacklist *utils.TokenBlacklist
	Guard     *utils.LoginGuard
	// Registry enables /metrics and request metrics when set.
	Registry *prometheus.Registry
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(utils.Rotation{
		Path:       cfg.GinPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}, cfg.LogLevel)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(utils.RecoveryWithZap(utils.Logger, false))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if d.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(d.Registry).Middleware())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/health", func(ctx *gin.Context) {
		status := gin.H{"status": "ok"}
		if d.DB != nil {
			if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
				utils.Respond(ctx, http.StatusServiceUnavailable, 50300, "database unavailable", gin.H{"status": "degraded"})
				return
			}
		}
		utils.Success(ctx, status)
	})

	auth := &middleware.Auth{
		Secret:          cfg.JWTSecret,
		Blacklist:       d.Blacklist,
		DefaultLocation: utils.LoadLocation(cfg.DefaultTimezone, time.UTC),
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	authController := controllers.NewAuthController(d.Users, cfg.JWTSecret, cfg.TokenTTL(), d.Blacklist, d.Guard)
	subscriptionController := controllers.NewSubscriptionController(d.Users)
	profileController := controllers.NewProfileController(d.Users, cfg.JWTSecret, cfg.TokenTTL())
	moodController := controllers.NewMoodController(d.Moods)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", auth.Required(), authController.Logout)
	authGroup.GET("/me", auth.Required(), authController.Me)

	api.PATCH("/subscription", auth.Required(), limiter.Middleware(), subscriptionController.Update)

	profile := api.Group("/profile")
	profile.Use(auth.Required(), limiter.Middleware())
	profile.GET("", profileController.Get)
	profile.PATCH("", profileController.Update)

	moods := api.Group("/moods")
	moods.Use(auth.Optional(), limiter.Middleware())
	moods.POST("", moodController.Save)
	moods.GET("/today", moodController.Today)
	moods.GET("/today/detailed", moodController.TodayDetailed)
	moods.GET("/recent", moodController.Recent)
	moods.GET("/streak", moodController.Streak)
	moods.GET("/weekly-average", moodController.WeeklyAverage)
	moods.GET("/week", moodController.Week)
	moods.GET("/average", moodController.Average)
	moods.GET("/latest", moodController.Latest)
	moods.GET("/pending", moodController.Pending)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "route not found")
	})

	return r
}
