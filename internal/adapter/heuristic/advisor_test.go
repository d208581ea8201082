package heuristic

import (
	"context"
	"testing"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
)

func TestAdviseKnownKinds(t *testing.T) {
	a := NewAdvisor()

	kinds := map[conflict.Kind]string{
		conflict.KindCircular:           "downgrade_edge",
		conflict.KindResourceContention: "stagger",
		conflict.KindKnowledgeGap:       "transfer",
	}
	for kind, action := range kinds {
		advice, err := a.Advise(context.Background(), conflict.Conflict{
			Kind:          kind,
			Severity:      conflict.SeverityMedium,
			AffectedNodes: []string{"a", "b"},
		})
		if err != nil {
			t.Fatalf("Advise(%s) failed: %v", kind, err)
		}
		if advice == nil {
			t.Fatalf("Advise(%s) returned nil advice", kind)
		}
		if len(advice.Steps) != 1 || advice.Steps[0].Action != action {
			t.Fatalf("Advise(%s): expected action %q, got %+v", kind, action, advice.Steps)
		}
		if advice.RiskLevel != conflict.RiskLow {
			t.Fatalf("Advise(%s): expected low risk for medium severity, got %s", kind, advice.RiskLevel)
		}
	}
}

func TestAdviseHighSeverityRaisesRisk(t *testing.T) {
	a := NewAdvisor()

	advice, err := a.Advise(context.Background(), conflict.Conflict{
		Kind:     conflict.KindCircular,
		Severity: conflict.SeverityHigh,
	})
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}
	if advice.RiskLevel != conflict.RiskMedium {
		t.Fatalf("expected medium risk, got %s", advice.RiskLevel)
	}
	if advice.SuccessProbability >= 0.85 {
		t.Fatalf("expected lowered probability, got %f", advice.SuccessProbability)
	}
}

func TestAdviseUnknownKind(t *testing.T) {
	a := NewAdvisor()

	advice, err := a.Advise(context.Background(), conflict.Conflict{Kind: conflict.Kind("other")})
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}
	if advice != nil {
		t.Fatal("expected nil advice for unknown kind")
	}
}
