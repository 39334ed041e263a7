package cmd

import (
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/registry"
)

// RegistryConfig carries everything the built-in nodes need: the sizing
// orchestrator's collaborators plus the shared persistence and bus.
type RegistryConfig struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Bus         eventbus.EventPublisher
	Data        protocol.DataProvider
	AI          protocol.DecisionService
	Trades      protocol.TradeExecutor
	Notifier    protocol.Notifier
}

// NewRegistry builds the node registry with all built-in node types wired to
// their collaborators.
func NewRegistry(cfg RegistryConfig) *registry.Registry {
	orch := orchestrator.New(orchestrator.Config{
		Logger:    cfg.Logger,
		Data:      cfg.Data,
		Decisions: cfg.Persistence.DecisionRepository(),
		AI:        cfg.AI,
		Trades:    cfg.Trades,
		Notifier:  cfg.Notifier,
		Bus:       cfg.Bus,
	})

	reg := registry.NewRegistry(cfg.Logger)
	reg.RegisterDefaultNodes(registry.Collaborators{
		Logger:       cfg.Logger,
		Data:         cfg.Data,
		Orchestrator: orch,
		Trades:       cfg.Trades,
		Decisions:    cfg.Persistence.DecisionRepository(),
	})

	return reg
}
