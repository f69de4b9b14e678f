package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/handler"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/middleware"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/response"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Student   *handler.StudentHandler
	Session   *handler.SessionHandler
	Answer    *handler.AnswerHandler
	Violation *handler.ViolationHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Heartbeats and violation reports arrive on short client-side timers;
	// the limiter caps a runaway client, not normal traffic.
	pingLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. Student Group (Exam-scoped, JWT) ──────────────────────────
	studentAPI := router.Group("/api/v1")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.GET("/student/exams/:matric_no", handlers.Student.ListExams)
		studentAPI.POST("/student/exam/:exam_id/validate", handlers.Student.ValidateAccess)
		studentAPI.POST("/student/exam/:exam_id/session/start", handlers.Student.StartSession)
		studentAPI.GET("/exam/:exam_id/session", handlers.Student.GetCurrentSession)
	}

	// ─── 2. Session Group (Session-scoped, JWT + ownership) ───────────
	sessionAPI := router.Group("/api/v1/session/:session_id")
	sessionAPI.Use(middleware.RequireStudentJWT(authService))
	{
		sessionAPI.GET("", handlers.Session.GetSession)
		sessionAPI.GET("/questions", handlers.Answer.GetQuestions)
		sessionAPI.PUT("/answer", handlers.Answer.UpsertAnswer)
		sessionAPI.PUT("/answers/batch", handlers.Answer.UpsertAnswerBatch)
		sessionAPI.GET("/answers", handlers.Answer.GetAnswers)
		sessionAPI.POST("/submit", handlers.Session.Submit)
		sessionAPI.POST("/auto-submit", handlers.Session.AutoSubmit)
		sessionAPI.GET("/time", handlers.Session.SyncTime)
		sessionAPI.POST("/heartbeat", pingLimiter.Middleware(), handlers.Session.Heartbeat)
		sessionAPI.POST("/violation", pingLimiter.Middleware(), handlers.Violation.LogViolation)
		sessionAPI.GET("/violations", handlers.Violation.GetViolations)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/session/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
