// Package conflict detects structural problems in a dependency graph and
// maps them to resolution strategies.
package conflict

import (
	"sort"
	"strings"
	"time"
)

// Kind classifies a detected conflict.
type Kind string

const (
	KindCircular           Kind = "circular"
	KindResourceContention Kind = "resource_contention"
	KindKnowledgeGap       Kind = "knowledge_gap"
)

// Severity grades how urgent a conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Conflict is a structural problem found in a dependency graph.
type Conflict struct {
	ID             string   `json:"id"`
	Kind           Kind     `json:"kind"`
	Severity       Severity `json:"severity"`
	AffectedNodes  []string `json:"affected_nodes"`
	Description    string   `json:"description"`
	Resolutions    []string `json:"resolutions,omitempty"`
	AutoResolvable bool     `json:"auto_resolvable"`
}

// conflictID derives a stable identifier from the conflict kind and its
// member nodes, so analyzing an unmodified graph twice yields identical
// conflicts.
func conflictID(kind Kind, nodes []string) string {
	sorted := make([]string, len(nodes))
	copy(sorted, nodes)
	sort.Strings(sorted)
	return string(kind) + ":" + strings.Join(sorted, "+")
}

// StrategyType names a resolution approach.
type StrategyType string

const (
	StrategyBreakCycle         StrategyType = "break_cycle"
	StrategyResourceAllocation StrategyType = "resource_allocation"
	StrategyTemporalAdjustment StrategyType = "temporal_adjustment"
	StrategyKnowledgeTransfer  StrategyType = "knowledge_transfer"
	StrategyParallelExecution  StrategyType = "parallel_execution"
)

// Risk grades how disruptive applying a strategy may be. Only low-risk
// strategies on auto-resolvable conflicts execute without approval.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Step is one ordered action inside a resolution strategy.
type Step struct {
	Action  string   `json:"action"`
	Targets []string `json:"targets"`
	Outcome string   `json:"outcome"`
}

// Strategy describes how to resolve one conflict.
type Strategy struct {
	ID                 string        `json:"id"`
	ConflictID         string        `json:"conflict_id"`
	Type               StrategyType  `json:"type"`
	Steps              []Step        `json:"steps"`
	EstimatedTime      time.Duration `json:"estimated_time"`
	RiskLevel          Risk          `json:"risk_level"`
	SuccessProbability float64       `json:"success_probability"`
	Applied            bool          `json:"applied"`
}

// Advice is oracle-provided refinement of a generated strategy: step
// wording and a risk estimate. Absent or malformed advice falls back to
// the built-in heuristics.
type Advice struct {
	Steps              []Step        `json:"steps,omitempty"`
	RiskLevel          Risk          `json:"risk_level,omitempty"`
	SuccessProbability float64       `json:"success_probability,omitempty"`
	EstimatedTime      time.Duration `json:"estimated_time,omitempty"`
}
