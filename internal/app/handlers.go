package app

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/handlers"
	"github.com/finlearn/finlearn-backend/internal/middleware"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/server"
)

const serviceName = "finlearn-backend"
const serviceVersion = "1.0.0"

type Handlers struct {
	Status      *handlers.StatusHandler
	Lesson      *handlers.LessonHandler
	Ingestion   *handlers.IngestionHandler
	Safety      *handlers.SafetyHandler
	Agent       *handlers.AgentHandler
	VectorStore *handlers.VectorStoreHandler
}

func wireHandlers(cfg Config, clients Clients, services Services, log *logger.Logger) Handlers {
	log.Info("Wiring handlers...")

	status := handlers.NewStatusHandler(serviceName, serviceVersion, func() map[string]string {
		return map[string]string{
			"vector_collections": strconv.Itoa(len(services.VectorStore.ListCollections())),
			"default_collection": cfg.VectorCollection,
		}
	})

	return Handlers{
		Status:      status,
		Lesson:      handlers.NewLessonHandler(services.Generator, services.Safety, log),
		Ingestion:   handlers.NewIngestionHandler(services.Processor, cfg.VectorCollection, cfg.DocumentsBucket, log),
		Safety:      handlers.NewSafetyHandler(services.Safety),
		Agent:       handlers.NewAgentHandler(services.Agent, clients.Memory),
		VectorStore: handlers.NewVectorStoreHandler(services.VectorStore, clients.S3, cfg.BackupsBucket, cfg.BackupPrefix),
	}
}

func wireRouter(cfg Config, h Handlers, auth *middleware.AuthMiddleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins:     cfg.AllowedOrigins,
		AuthMiddleware:     auth,
		StatusHandler:      h.Status,
		LessonHandler:      h.Lesson,
		IngestionHandler:   h.Ingestion,
		SafetyHandler:      h.Safety,
		AgentHandler:       h.Agent,
		VectorStoreHandler: h.VectorStore,
	})
}
