package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/service"
	"github.com/noah-isme/channel-account-api/pkg/config"
	"github.com/noah-isme/channel-account-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/channel-account-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/channel-account-api/pkg/middleware/requestid"
	"github.com/noah-isme/channel-account-api/pkg/response"
)

// MediaRoute serves files written by the local media driver.
const MediaRoute = "/media"

// RouterDeps groups what NewRouter mounts.
type RouterDeps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *service.MetricsService
	Tokens   middleware.TokenVerifier
	Auth     *AuthHandler
	Accounts *AccountHandler
	Health   *MetricsHandler
}

// NewRouter builds the gin engine with the shared middleware chain and every
// account route under cfg.APIPrefix.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Media.MaxFileSizeBytes > 0 {
		r.MaxMultipartMemory = 2 * cfg.Media.MaxFileSizeBytes
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(response.Debug(cfg.Env != config.EnvProduction))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", deps.Health.Prometheus)
	}

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.Media.Driver == config.MediaDriverLocal && cfg.Media.LocalDir != "" {
		r.Static(MediaRoute, cfg.Media.LocalDir)
	}

	users := r.Group(cfg.APIPrefix)
	users.POST("/register", deps.Auth.Register)
	users.POST("/login", deps.Auth.Login)
	users.POST("/refresh-token", deps.Auth.Refresh)

	secured := users.Group("")
	secured.Use(middleware.AuthGuard(deps.Tokens))
	secured.POST("/logout", deps.Auth.Logout)
	secured.POST("/change-password", deps.Auth.ChangePassword)
	secured.DELETE("/delete", deps.Auth.Delete)
	secured.GET("/current-user", deps.Accounts.Current)
	secured.PATCH("/update-account", deps.Accounts.Update)
	secured.PATCH("/avatar", deps.Accounts.Avatar)
	secured.PATCH("/cover-image", deps.Accounts.Cover)
	secured.GET("/channel/:username", deps.Accounts.Channel)
	secured.GET("/chanel/:username", deps.Accounts.Channel)
	secured.GET("/history", deps.Accounts.History)

	return r
}
