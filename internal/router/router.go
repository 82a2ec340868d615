package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/handler"
	"github.com/quizdrill/quizdrill-backend/internal/middleware"
	"github.com/quizdrill/quizdrill-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Results *handler.ResultsHandler
	Prefs   *handler.PrefsHandler
	Storage *handler.StorageHandler
	Queue   *handler.QueueHandler
	Notify  *handler.NotifyHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
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

	// Limit exam uploads (10 per minute per IP).
	loadLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── 1. Exam catalog ───────────────────────────────────────────────
	exams := router.Group("/api/v1/exams")
	{
		exams.GET("", handlers.Exam.List)
		// Loaded exams are immutable, so GETs cache briefly.
		exams.GET("/:exam_id", middleware.CacheControl(300), handlers.Exam.Get)
		exams.POST("", loadLimiter.Middleware(), handlers.Exam.Load)
	}

	// ─── 2. Quiz sessions ──────────────────────────────────────────────
	sess := router.Group("/api/v1/exams/:exam_id/session")
	{
		sess.POST("", handlers.Session.Start)
		sess.GET("", handlers.Session.Get)
		sess.DELETE("", handlers.Session.Delete)
		sess.POST("/answer", handlers.Session.Answer)
		sess.POST("/flag", handlers.Session.Flag)
		sess.POST("/goto", handlers.Session.Goto)
		sess.POST("/next", handlers.Session.Next)
		sess.POST("/previous", handlers.Session.Previous)
		sess.POST("/undo", handlers.Session.Undo)
		sess.POST("/redo", handlers.Session.Redo)
		sess.POST("/submit", handlers.Session.Submit)
		sess.GET("/analytics", handlers.Session.Analytics)
	}

	// ─── 3. Results history ────────────────────────────────────────────
	results := router.Group("/api/v1/results")
	{
		results.GET("", handlers.Results.List)
		results.GET("/search", handlers.Results.Search)
		results.GET("/stats/:exam_id", handlers.Results.Stats)
		results.GET("/trend/:exam_id", handlers.Results.Trend)
		results.GET("/export", handlers.Results.Export)
	}

	// ─── 4. Preferences ────────────────────────────────────────────────
	prefs := router.Group("/api/v1/preferences")
	{
		prefs.GET("", handlers.Prefs.Get)
		prefs.PUT("", handlers.Prefs.Put)
		prefs.GET("/export", handlers.Prefs.Export)
		prefs.POST("/import", handlers.Prefs.Import)
	}

	// ─── 5. Durable store ──────────────────────────────────────────────
	store := router.Group("/api/v1/storage")
	{
		store.GET("/usage", handlers.Storage.Usage)
		store.GET("/health", handlers.Storage.Health)
		store.POST("/repair", handlers.Storage.Repair)
		store.GET("/backup", handlers.Storage.Backup)
		store.POST("/restore", handlers.Storage.Restore)
	}

	// ─── 6. Offline queue ──────────────────────────────────────────────
	q := router.Group("/api/v1/queue")
	{
		q.GET("/pending", handlers.Queue.Pending)
		q.DELETE("/pending", handlers.Queue.Clear)
		q.GET("/deadletter", handlers.Queue.DeadLetters)
		q.POST("/sync", handlers.Queue.Sync)
		q.PUT("/online", handlers.Queue.SetOnline)
	}

	// ─── 7. WebSocket notifications ────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/notifications", handlers.Notify.Stream)
	}

	return router
}
