package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Candidate *handler.CandidateHandler
	Recruiter *handler.RecruiterHandler
	WS        *handler.WSHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Candidate Group (JWT + Rate Limited) ───────────────────────
	candidateAPI := router.Group("/api/v1/candidate/offers/:offer_id")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.NoStore(),
	)
	if limiter != nil {
		candidateAPI.Use(limiter.Middleware())
	}
	{
		candidateAPI.POST("/consent", handlers.Candidate.RecordConsent)
		candidateAPI.GET("/consent", handlers.Candidate.GetConsent)
		candidateAPI.GET("/session", handlers.Candidate.GetSession)
		candidateAPI.GET("/result", handlers.Candidate.GetResult)
		candidateAPI.POST("/signals", handlers.Candidate.PostSignal)
	}

	// ─── 2. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/offers/:offer_id/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Recruiter Group (JWT + RBAC) ───────────────────────────────
	recruiterAPI := router.Group("/api/v1/recruiter")
	recruiterAPI.Use(middleware.RequireRecruiterJWT(authService), middleware.NoStore())
	{
		recruiterAPI.GET("/offers/:offer_id/monitor",
			middleware.RequirePermission(model.PermissionProctoringMonitor),
			handlers.Monitor.MonitorOfferSSE,
		)
		recruiterAPI.GET("/offers/:offer_id/candidates/:candidate_id/result",
			middleware.RequirePermission(model.PermissionResultsRead),
			handlers.Recruiter.GetCandidateResult,
		)
		recruiterAPI.GET("/system/status",
			middleware.RequireAnyPermission(model.PermissionProctoringMonitor, model.PermissionResultsRead),
			handlers.System.Status,
		)
	}

	return router
}
