package conflict

import (
	"fmt"
	"strings"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
)

// contentionHighWater is the claimant count above which a resource
// contention conflict is graded high instead of medium.
const contentionHighWater = 3

// Analyze scans the graph in three independent passes — circular
// dependencies, resource contention, knowledge gaps — and returns the
// combined conflict list. Conflict IDs are stable across repeated runs
// on an unmodified graph.
func Analyze(g *depgraph.Graph) []Conflict {
	var conflicts []Conflict
	conflicts = append(conflicts, circularConflicts(g)...)
	conflicts = append(conflicts, contentionConflicts(g)...)
	conflicts = append(conflicts, knowledgeGapConflicts(g)...)
	return conflicts
}

// circularConflicts emits one high-severity conflict per detected cycle.
// Cycle breaking is mechanical (demote one edge), so these are auto-resolvable.
func circularConflicts(g *depgraph.Graph) []Conflict {
	var out []Conflict
	for _, cycle := range g.Cycles() {
		members := cycle[:len(cycle)-1] // drop the repeated closing node
		out = append(out, Conflict{
			ID:            conflictID(KindCircular, members),
			Kind:          KindCircular,
			Severity:      SeverityHigh,
			AffectedNodes: append([]string(nil), members...),
			Description: fmt.Sprintf("circular dependency: %s",
				strings.Join(cycle, " -> ")),
			Resolutions:    []string{"demote the weakest edge in the cycle to a soft hint"},
			AutoResolvable: true,
		})
	}
	return out
}

// contentionConflicts emits a conflict for every resource node claimed by
// two or more tasks. Contention is resolvable by serializing the
// claimants, so no human input is needed.
func contentionConflicts(g *depgraph.Graph) []Conflict {
	var out []Conflict
	for _, n := range g.Nodes() {
		if n.Kind != depgraph.KindResource {
			continue
		}
		var claimants []string
		for _, dep := range g.Dependents(n.ID) {
			d, err := g.Node(dep)
			if err == nil && d.Kind == depgraph.KindTask {
				claimants = append(claimants, dep)
			}
		}
		if len(claimants) < 2 {
			continue
		}
		severity := SeverityMedium
		if len(claimants) > contentionHighWater {
			severity = SeverityHigh
		}
		affected := append([]string{n.ID}, claimants...)
		out = append(out, Conflict{
			ID:            conflictID(KindResourceContention, affected),
			Kind:          KindResourceContention,
			Severity:      severity,
			AffectedNodes: affected,
			Description: fmt.Sprintf("resource %s claimed by %d tasks",
				n.ID, len(claimants)),
			Resolutions:    []string{"stagger claimant start times to serialize access"},
			AutoResolvable: true,
		})
	}
	return out
}

// knowledgeGapConflicts emits one conflict per dependent task of every
// blocked knowledge node. Closing a knowledge gap needs a transfer from
// a human or an external agent, so these are never auto-resolvable.
func knowledgeGapConflicts(g *depgraph.Graph) []Conflict {
	var out []Conflict
	for _, n := range g.Nodes() {
		if n.Kind != depgraph.KindKnowledge || n.Status != depgraph.StatusBlocked {
			continue
		}
		for _, dep := range g.Dependents(n.ID) {
			d, err := g.Node(dep)
			if err != nil || d.Kind != depgraph.KindTask {
				continue
			}
			affected := []string{n.ID, dep}
			out = append(out, Conflict{
				ID:            conflictID(KindKnowledgeGap, affected),
				Kind:          KindKnowledgeGap,
				Severity:      SeverityMedium,
				AffectedNodes: affected,
				Description: fmt.Sprintf("task %s blocked on unavailable knowledge %s",
					dep, n.ID),
				Resolutions:    []string{"schedule a knowledge transfer session"},
				AutoResolvable: false,
			})
		}
	}
	return out
}
