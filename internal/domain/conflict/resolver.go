package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
)

// ErrNoRecoveryStrategy indicates a conflict kind with no applicable
// strategy. Surfaced as a warning; plans proceed without resolving it.
var ErrNoRecoveryStrategy = errors.New("no recovery strategy for conflict")

// Advisor refines generated strategies with external step wording and
// risk estimates. Implementations may call out to an AI service; the
// resolver never blocks on advisor failure.
type Advisor interface {
	Advise(ctx context.Context, c Conflict) (*Advice, error)
}

// ResolverConfig carries the tunable constants of the strategy engine.
type ResolverConfig struct {
	StaggerIncrement time.Duration // added per claimant index when serializing resource access
	TransferDuration time.Duration // fixed duration assigned to a knowledge transfer
}

// DefaultResolverConfig returns the standard engine tuning.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		StaggerIncrement: 15 * time.Minute,
		TransferDuration: 30 * time.Minute,
	}
}

// Resolver generates resolution strategies for conflicts and applies the
// auto-resolvable ones to the graph.
type Resolver struct {
	advisor Advisor // nil disables external advice
	cfg     ResolverConfig
}

// NewResolver creates a strategy engine. advisor may be nil.
func NewResolver(advisor Advisor, cfg ResolverConfig) *Resolver {
	if cfg.StaggerIncrement <= 0 {
		cfg.StaggerIncrement = DefaultResolverConfig().StaggerIncrement
	}
	if cfg.TransferDuration <= 0 {
		cfg.TransferDuration = DefaultResolverConfig().TransferDuration
	}
	return &Resolver{advisor: advisor, cfg: cfg}
}

// Resolve generates a strategy for every conflict and applies those that
// are auto-resolvable with low risk. Conflicts without an applicable
// strategy are skipped with a warning; the error return covers only
// graph mutation failures.
func (r *Resolver) Resolve(ctx context.Context, g *depgraph.Graph, conflicts []Conflict) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(conflicts))
	for i := range conflicts {
		c := conflicts[i]
		s, err := r.Generate(ctx, c)
		if err != nil {
			slog.Warn("conflict left unresolved", "conflict_id", c.ID, "error", err)
			continue
		}

		if c.AutoResolvable && s.RiskLevel == RiskLow {
			if err := r.Apply(g, c, &s); err != nil {
				return strategies, fmt.Errorf("apply strategy %s: %w", s.ID, err)
			}
			s.Applied = true
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// Generate maps a conflict to its strategy type and builds the ordered
// steps. When an advisor is configured its advice refines the wording
// and risk estimate; advisor failure falls back to a fixed single-step
// heuristic (medium risk, 0.6 success probability) so oracle outages
// never block resolution.
func (r *Resolver) Generate(ctx context.Context, c Conflict) (Strategy, error) {
	var s Strategy
	switch c.Kind {
	case KindCircular:
		s = r.breakCycleStrategy(c)
	case KindResourceContention:
		s = r.resourceStrategy(c)
	case KindKnowledgeGap:
		s = r.knowledgeStrategy(c)
	default:
		return Strategy{}, fmt.Errorf("conflict %s kind %s: %w", c.ID, c.Kind, ErrNoRecoveryStrategy)
	}
	s.ID = uuid.NewString()
	s.ConflictID = c.ID

	if r.advisor == nil {
		return s, nil
	}

	advice, err := r.advisor.Advise(ctx, c)
	if err != nil || advice == nil {
		slog.Warn("strategy advisor unavailable, using heuristic fallback",
			"conflict_id", c.ID, "error", err)
		s.Steps = []Step{{
			Action:  "resolve",
			Targets: c.AffectedNodes,
			Outcome: "conflict resolved by default heuristic",
		}}
		s.RiskLevel = RiskMedium
		s.SuccessProbability = 0.6
		return s, nil
	}

	if len(advice.Steps) > 0 {
		s.Steps = advice.Steps
	}
	if advice.RiskLevel != "" {
		s.RiskLevel = advice.RiskLevel
	}
	if advice.SuccessProbability > 0 {
		s.SuccessProbability = advice.SuccessProbability
	}
	if advice.EstimatedTime > 0 {
		s.EstimatedTime = advice.EstimatedTime
	}
	return s, nil
}

// Apply executes a strategy's graph mutation. Exported so that surfaced
// (non-auto) strategies can be applied after external approval.
func (r *Resolver) Apply(g *depgraph.Graph, c Conflict, s *Strategy) error {
	switch s.Type {
	case StrategyBreakCycle:
		return r.applyBreakCycle(g, c)
	case StrategyResourceAllocation:
		return r.applyStagger(g, c)
	case StrategyKnowledgeTransfer:
		return r.applyTransfer(g, c)
	default:
		return fmt.Errorf("strategy type %s: %w", s.Type, ErrNoRecoveryStrategy)
	}
}

func (r *Resolver) breakCycleStrategy(c Conflict) Strategy {
	return Strategy{
		Type: StrategyBreakCycle,
		Steps: []Step{{
			Action:  "demote_edge",
			Targets: c.AffectedNodes,
			Outcome: "weakest in-cycle edge becomes a non-blocking hint",
		}},
		EstimatedTime:      5 * time.Minute,
		RiskLevel:          RiskLow,
		SuccessProbability: 0.85,
	}
}

func (r *Resolver) resourceStrategy(c Conflict) Strategy {
	claimants := len(c.AffectedNodes) - 1 // first affected node is the resource
	if claimants < 0 {
		claimants = 0
	}
	return Strategy{
		Type: StrategyResourceAllocation,
		Steps: []Step{{
			Action:  "stagger_start_times",
			Targets: c.AffectedNodes,
			Outcome: "claimants serialized by staggered estimates",
		}},
		EstimatedTime:      time.Duration(claimants) * r.cfg.StaggerIncrement,
		RiskLevel:          RiskLow,
		SuccessProbability: 0.9,
	}
}

func (r *Resolver) knowledgeStrategy(c Conflict) Strategy {
	return Strategy{
		Type: StrategyKnowledgeTransfer,
		Steps: []Step{{
			Action:  "transfer_knowledge",
			Targets: c.AffectedNodes,
			Outcome: "knowledge node becomes available after transfer",
		}},
		EstimatedTime:      r.cfg.TransferDuration,
		RiskLevel:          RiskMedium,
		SuccessProbability: 0.7,
	}
}

// applyBreakCycle demotes the minimum-weight blocking edge that lies
// entirely inside the conflict's node set. Ties resolve to the earliest
// inserted edge.
func (r *Resolver) applyBreakCycle(g *depgraph.Graph, c Conflict) error {
	members := make(map[string]bool, len(c.AffectedNodes))
	for _, id := range c.AffectedNodes {
		members[id] = true
	}

	minWeight := math.Inf(1)
	var from, to string
	found := false
	for _, e := range g.Edges() {
		if !e.Blocking || !members[e.From] || !members[e.To] {
			continue
		}
		if e.Weight < minWeight {
			minWeight = e.Weight
			from, to = e.From, e.To
			found = true
		}
	}
	if !found {
		return fmt.Errorf("conflict %s: no blocking edge inside cycle: %w",
			c.ID, ErrNoRecoveryStrategy)
	}
	return g.DemoteEdge(from, to)
}

// applyStagger serializes competing claimants by growing each task's
// estimate by a fixed increment per claimant index.
func (r *Resolver) applyStagger(g *depgraph.Graph, c Conflict) error {
	if len(c.AffectedNodes) < 2 {
		return nil
	}
	claimants := c.AffectedNodes[1:]
	for i, id := range claimants {
		n, err := g.Node(id)
		if err != nil {
			return err
		}
		if err := g.SetNodeEstimate(id, n.Estimate+time.Duration(i)*r.cfg.StaggerIncrement); err != nil {
			return err
		}
	}
	return nil
}

// applyTransfer flips the knowledge node to available and assigns it the
// fixed transfer duration.
func (r *Resolver) applyTransfer(g *depgraph.Graph, c Conflict) error {
	if len(c.AffectedNodes) == 0 {
		return nil
	}
	knowledgeID := c.AffectedNodes[0]
	if err := g.SetNodeStatus(knowledgeID, depgraph.StatusAvailable); err != nil {
		return err
	}
	return g.SetNodeEstimate(knowledgeID, r.cfg.TransferDuration)
}
