package app

import (
	"github.com/finlearn/finlearn-backend/internal/agent"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/platform/openai"
	s3client "github.com/finlearn/finlearn-backend/internal/platform/s3"
)

// Clients holds the external service connections.
type Clients struct {
	AI     openai.Client
	S3     s3client.Client
	Memory agent.Memory
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, err
	}

	s3cfg := s3client.ConfigFromEnv()
	if err := s3client.ValidateConfig(s3cfg); err != nil {
		return Clients{}, err
	}
	s3, err := s3client.NewClient(log, s3cfg)
	if err != nil {
		return Clients{}, err
	}

	memory, err := agent.NewMemory(log)
	if err != nil {
		return Clients{}, err
	}

	return Clients{AI: ai, S3: s3, Memory: memory}, nil
}
