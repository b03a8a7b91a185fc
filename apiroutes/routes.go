package apiroutes

import (
	"github.com/demesne/go-demesne-server/api"
	restinterceptors "github.com/demesne/go-demesne-server/api/interceptors"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// corsConfig admits the configured origins only. Without any, cross origin
// requests are refused and same origin requests pass.
func corsConfig() cors.Config {
	conf := cors.DefaultConfig()
	if len(global.Conf.Demesne.CorsOrigins) == 0 {
		conf.AllowOriginFunc = func(origin string) bool { return false }
	} else {
		conf.AllowOrigins = global.Conf.Demesne.CorsOrigins
	}
	conf.AddAllowHeaders("Authorization")
	conf.AddExposeHeaders(restinterceptors.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset")
	return conf
}

// REST API routes
func ConfigRoutes(router *gin.Engine, svc *Services) *gin.Engine {
	router.Use(cors.New(corsConfig()), restinterceptors.RequestIDMiddleware())

	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// API definitions
	healthCheckApi := api.NewHealthCheckAPI()
	identityApi := api.NewIdentityApi(svc.Resolver, svc.Audit)
	accountApi := api.NewAccountApi(svc.Resolver, svc.Sessions, svc.Accounts)
	keysApi := api.NewKeysApi(svc.Rotation, svc.Resolver, svc.Keys, svc.Accounts)
	backupApi := api.NewBackupApi(svc.Backups)
	profileApi := api.NewProfileApi(svc.Profiles)

	router.GET("/healthcheck", healthCheckApi.HealthCheck)

	// PUBLIC API (read only lookups)
	publicApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware())
	{
		publicApi.GET("/v1/identity/:identifier", identityApi.Resolve)
		publicApi.GET("/v1/identity/:identifier/audit", identityApi.AuditLog)
		publicApi.GET("/v1/lookup", identityApi.Lookup)
		publicApi.GET("/v1/profiles", profileApi.GetProfiles)
		publicApi.POST("/v1/login", accountApi.Login)
	}

	// ACCOUNT API (token from login required)
	accountRoutes := router.Group("/api/v1/accounts", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware(), restinterceptors.JWSMiddleware())
	{
		accountRoutes.GET("", accountApi.ListAccounts)
		accountRoutes.DELETE("/:did", accountApi.DeleteAccount)
		accountRoutes.POST("/:did/resume", accountApi.ResumeAccount)
		accountRoutes.GET("/:did/credentials", keysApi.RecommendedCredentials)
		accountRoutes.GET("/:did/keys", keysApi.ListKeys)
		accountRoutes.POST("/:did/keys", keysApi.AddKey)
		accountRoutes.POST("/:did/keys/request-token", keysApi.RequestToken)
		accountRoutes.POST("/:did/keys/retrieve", keysApi.RetrieveKey)
		accountRoutes.GET("/:did/backups", backupApi.ListBackups)
		accountRoutes.POST("/:did/backups", backupApi.CreateBackup)
		accountRoutes.DELETE("/:did/backups", backupApi.DeleteBackup)
	}

	return router
}
