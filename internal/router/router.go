package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/handler"
	"github.com/stemsi/ept-backend/internal/logger"
	"github.com/stemsi/ept-backend/internal/middleware"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Candidate *handler.CandidateHandler
	Public    *handler.PublicHandler
	Admin     *handler.AdminHandler
	Question  *handler.QuestionHandler
	Media     *handler.MediaHandler
	WS        *handler.WSHandler
	Setting   *handler.SettingHandler
	Dashboard *handler.DashboardHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Request ID first so the access log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.Middleware(log, response.ContextKeyRequestID))

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Brotli())

	// Uploaded certificate templates are renamed on every upload, so they cache for a year.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	verifyLimiter := middleware.NewRateLimiter(rdb, "verify", 60, time.Minute, log)
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/settings", middleware.CacheControl(60), handlers.Public.GetPublicSettings)
		publicAPI.GET("/certificates/:code", verifyLimiter.Middleware(), handlers.Public.VerifyCertificate)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(rdb, "auth", 30, time.Minute, log)
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/candidate/register", authLimiter.Middleware(), handlers.Auth.CandidateRegister)
		auth.POST("/candidate/login", authLimiter.Middleware(), handlers.Auth.CandidateLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout",
			middleware.RequireCandidateJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.CandidateLogout,
		)
		auth.GET("/candidate/me",
			middleware.RequireCandidateJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.GetCandidateProfile,
		)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		candidateAPI.GET("/dashboard", handlers.Candidate.Dashboard)
		candidateAPI.POST("/retake", handlers.Candidate.Retake)
		candidateAPI.GET("/certificate.pdf", handlers.Candidate.Certificate)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireCandidateWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/candidate/exam", handlers.WS.ExamStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		// Question bank
		adminAPI.GET("/questions",
			middleware.RequireAnyPermission(model.PermissionQuestionsRead, model.PermissionQuestionsWrite),
			handlers.Question.ListQuestions,
		)
		adminAPI.POST("/questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.AddQuestion,
		)
		adminAPI.PUT("/questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.ReplaceQuestions,
		)
		adminAPI.PUT("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.UpdateQuestion,
		)
		adminAPI.DELETE("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.DeleteQuestion,
		)
		adminAPI.POST("/questions/import",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.ImportQuestions,
		)
		adminAPI.POST("/questions/generate",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.GenerateQuestions,
		)

		// App settings
		settingsGroup := adminAPI.Group("/settings")
		{
			settingsGroup.GET("", handlers.Setting.GetAllSettings) // Open to all admins
			settingsGroup.PUT("", middleware.RequirePermission(model.PermissionSettingsWrite), handlers.Setting.UpdateSettings)
		}

		// Media upload
		adminAPI.POST("/media/certificate-template",
			middleware.RequirePermission(model.PermissionMediaUpload),
			handlers.Media.UploadCertificateTemplate,
		)
		adminAPI.DELETE("/media/certificate-template",
			middleware.RequirePermission(model.PermissionMediaUpload),
			handlers.Media.ClearCertificateTemplate,
		)

		// Dashboard
		adminAPI.GET("/dashboard",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Dashboard.GetDashboardData,
		)

		// Candidates & sales
		adminAPI.GET("/candidates",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Admin.ListCandidates,
		)
		adminAPI.POST("/candidates/:id/purchase",
			middleware.RequirePermission(model.PermissionCandidatesWrite),
			handlers.Admin.RecordPurchase,
		)
		adminAPI.POST("/candidates/:id/unlock",
			middleware.RequirePermission(model.PermissionCandidatesWrite),
			handlers.Admin.UnlockCandidate,
		)

		// Live sessions & review
		adminAPI.GET("/sessions/live",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Admin.ListLiveSessions,
		)
		adminAPI.GET("/sessions/monitor",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Monitor.MonitorSessionsSSE,
		)
		adminAPI.POST("/sessions/:candidate_id/annul",
			middleware.RequirePermission(model.PermissionSessionsAnnul),
			handlers.Admin.AnnulSession,
		)
		adminAPI.GET("/attempts/:attempt_id",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Admin.ReviewAttempt,
		)
		adminAPI.GET("/attempts/:attempt_id/frames/:seq",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Admin.GetFrame,
		)

		// System status
		adminAPI.GET("/system/status", handlers.System.GetStatus) // Open to all admins
	}

	return router
}
