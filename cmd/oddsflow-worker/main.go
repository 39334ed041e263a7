package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/oddsflow/oddsflow/pkg/cmd"
	"github.com/oddsflow/oddsflow/pkg/log"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/providers/httpdata"
	"github.com/oddsflow/oddsflow/pkg/providers/lognotifier"
	"github.com/oddsflow/oddsflow/pkg/providers/papertrade"

	"github.com/oddsflow/oddsflow/pkg/ai"
)

func main() {
	command := &cli.Command{
		Name:                  "oddsflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to execute strategy workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka or gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "data-url",
				Usage:    "Base URL of the market/portfolio data endpoint",
				Required: true,
				Sources:  cli.EnvVars("DATA_URL"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key for the advisory decision service (optional)",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "OpenAI model for the advisory decision service",
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("oddsflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "oddsflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var aiService protocol.DecisionService
			if apiKey := command.String("openai-api-key"); apiKey != "" {
				aiService = ai.NewOpenAIDecisionService(logger, apiKey, command.String("openai-model"), 10*time.Second)
			}

			registry := cmd.NewRegistry(cmd.RegistryConfig{
				Logger:      logger,
				Persistence: persistence,
				Bus:         eventBus,
				Data:        httpdata.NewProvider(logger, command.String("data-url")),
				AI:          aiService,
				Trades:      papertrade.NewExecutor(logger),
				Notifier:    lognotifier.NewNotifier(logger),
			})

			worker := NewWorkerManager(workerID, persistence, eventBus, logger, registry)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
