package heuristic

import (
	"context"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
)

// Advisor refines strategies without an oracle round-trip. The advice is
// table-driven per conflict kind: fixed step wording, risk graded by the
// conflict severity.
type Advisor struct{}

var _ conflict.Advisor = (*Advisor)(nil)

// NewAdvisor creates the local strategy advisor.
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Advise returns canned advice for the known conflict kinds. Unknown
// kinds return nil advice so the resolver keeps its generated strategy.
func (a *Advisor) Advise(_ context.Context, c conflict.Conflict) (*conflict.Advice, error) {
	risk := conflict.RiskLow
	probability := 0.85
	if c.Severity == conflict.SeverityHigh || c.Severity == conflict.SeverityCritical {
		risk = conflict.RiskMedium
		probability = 0.7
	}

	switch c.Kind {
	case conflict.KindCircular:
		return &conflict.Advice{
			Steps: []conflict.Step{{
				Action:  "downgrade_edge",
				Targets: c.AffectedNodes,
				Outcome: "weakest cycle edge becomes soft, cycle broken",
			}},
			RiskLevel:          risk,
			SuccessProbability: probability,
			EstimatedTime:      5 * time.Minute,
		}, nil
	case conflict.KindResourceContention:
		return &conflict.Advice{
			Steps: []conflict.Step{{
				Action:  "stagger",
				Targets: c.AffectedNodes,
				Outcome: "claimants ordered by priority, contention serialized",
			}},
			RiskLevel:          risk,
			SuccessProbability: probability,
			EstimatedTime:      10 * time.Minute,
		}, nil
	case conflict.KindKnowledgeGap:
		return &conflict.Advice{
			Steps: []conflict.Step{{
				Action:  "transfer",
				Targets: c.AffectedNodes,
				Outcome: "knowledge dependency linked ahead of dependents",
			}},
			RiskLevel:          risk,
			SuccessProbability: probability,
			EstimatedTime:      15 * time.Minute,
		}, nil
	default:
		return nil, nil
	}
}
