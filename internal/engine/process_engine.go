package engine

import (
	"context"

	"EmeraldAgent/internal/domain/models"
	"EmeraldAgent/internal/domain/service"
)

// ProcessEngine is a DecisionEngine backed by one child-process strategy.
type ProcessEngine struct {
	strategy Strategy
	invoker  *Invoker
}

// NewCompiledEngine runs the precompiled engine artifact.
func NewCompiledEngine(s Strategy, inv *Invoker) *ProcessEngine {
	s.Kind = StrategyCompiled
	return &ProcessEngine{strategy: s, invoker: inv}
}

// NewInterpretedEngine runs the engine from source through an interpreter.
func NewInterpretedEngine(s Strategy, inv *Invoker) *ProcessEngine {
	s.Kind = StrategyInterpreted
	return &ProcessEngine{strategy: s, invoker: inv}
}

func (e *ProcessEngine) Strategy() string { return string(e.strategy.Kind) }

func (e *ProcessEngine) Decide(ctx context.Context, payload []byte) (*models.DecisionResponse, error) {
	out, err := e.invoker.Invoke(ctx, e.strategy, payload)
	if err != nil {
		return nil, err
	}
	return Decode(out)
}

// Catalog exposes the strategies resolved by a Locator as engines.
type Catalog struct {
	locator *Locator
	invoker *Invoker
}

func NewCatalog(locator *Locator, invoker *Invoker) *Catalog {
	return &Catalog{locator: locator, invoker: invoker}
}

// Engines resolves strategies afresh on every call so a newly built artifact is
// picked up without a restart.
func (c *Catalog) Engines() []service.DecisionEngine {
	strategies := c.locator.ResolveStrategies()
	out := make([]service.DecisionEngine, 0, len(strategies))
	for _, s := range strategies {
		switch s.Kind {
		case StrategyCompiled:
			out = append(out, NewCompiledEngine(s, c.invoker))
		default:
			out = append(out, NewInterpretedEngine(s, c.invoker))
		}
	}
	return out
}

// Available lists strategy kinds without exposing their locations.
func (c *Catalog) Available() []string {
	strategies := c.locator.ResolveStrategies()
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, string(s.Kind))
	}
	return out
}

var _ service.EngineResolver = (*Catalog)(nil)
var _ service.DecisionEngine = (*ProcessEngine)(nil)
