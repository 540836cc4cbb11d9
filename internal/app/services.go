package app

import (
	"github.com/finlearn/finlearn-backend/internal/agent"
	"github.com/finlearn/finlearn-backend/internal/generator"
	"github.com/finlearn/finlearn-backend/internal/ingestion"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/safety"
	"github.com/finlearn/finlearn-backend/internal/vectorstore"
)

// Services holds the domain layer, wired over the clients.
type Services struct {
	VectorStore *vectorstore.Manager
	Processor   *ingestion.Processor
	Generator   *generator.LessonGenerator
	Safety      *safety.Validator
	Agent       *agent.Orchestrator
}

func wireServices(cfg Config, clients Clients, log *logger.Logger) (Services, error) {
	log.Info("Wiring services...")

	store, err := vectorstore.NewManager(cfg.VectorPersistDir, clients.AI, log)
	if err != nil {
		return Services{}, err
	}

	loader := ingestion.NewLoader(clients.S3, log)
	chunker := ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	processor := ingestion.NewProcessor(loader, chunker, store, log)

	gen := generator.NewLessonGenerator(clients.AI, store.Retriever(cfg.VectorCollection, 4), log)
	validator := safety.NewValidator(clients.AI, safety.ConfigFromEnv(), log)

	tools := agent.NewToolset(clients.Memory, gen, log)
	orchestrator := agent.NewOrchestrator(clients.AI, tools, clients.Memory, log)

	return Services{
		VectorStore: store,
		Processor:   processor,
		Generator:   gen,
		Safety:      validator,
		Agent:       orchestrator,
	}, nil
}
