package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/handlers"
	"github.com/finlearn/finlearn-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string

	AuthMiddleware     *middleware.AuthMiddleware
	StatusHandler      *handlers.StatusHandler
	LessonHandler      *handlers.LessonHandler
	IngestionHandler   *handlers.IngestionHandler
	SafetyHandler      *handlers.SafetyHandler
	AgentHandler       *handlers.AgentHandler
	VectorStoreHandler *handlers.VectorStoreHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/", cfg.StatusHandler.Root)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/status", cfg.StatusHandler.Status)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAPIKey())
	// Lessons
	api.POST("/generate-lesson", cfg.LessonHandler.GenerateLesson)
	api.POST("/generate-quiz", cfg.LessonHandler.GenerateQuiz)
	// Ingestion
	api.POST("/ingest-documents", cfg.IngestionHandler.IngestDocuments)
	api.POST("/process-document", cfg.IngestionHandler.ProcessDocument)
	// Safety
	api.POST("/validate-safety", cfg.SafetyHandler.ValidateSafety)
	// Agent
	api.POST("/agent/chat", cfg.AgentHandler.Chat)
	api.POST("/agent/start-lesson", cfg.AgentHandler.StartLesson)
	api.POST("/agent/submit-answer", cfg.AgentHandler.SubmitAnswer)
	api.GET("/agent/learning-path/:learner_id", cfg.AgentHandler.LearningPath)
	// Vector store administration
	api.POST("/vectorstore/backup", cfg.VectorStoreHandler.Backup)
	api.POST("/vectorstore/restore", cfg.VectorStoreHandler.Restore)
	api.GET("/vectorstore/backups", cfg.VectorStoreHandler.ListBackups)
	api.GET("/vectorstore/collections", cfg.VectorStoreHandler.Collections)

	return router
}
