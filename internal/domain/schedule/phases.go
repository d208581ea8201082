package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

// SchedulerConfig carries the phase builder's tunable constants.
type SchedulerConfig struct {
	MaxSameTeamPerGroup int    // max tasks of one team inside a parallel burst
	DefaultTeam         string // assigned when a task names no team
}

// DefaultSchedulerConfig returns the standard scheduler tuning.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxSameTeamPerGroup: 3,
		DefaultTeam:         "general",
	}
}

// BuildPhases partitions the graph's task nodes into level-based phases.
// The graph must be acyclic: callers resolve conflicts first and a
// cyclic graph fails with ErrCycleDetected. Only task-kind nodes become
// scheduled work; resource and knowledge nodes shape the levels but are
// not executed.
func BuildPhases(g *depgraph.Graph, tasks map[string]*task.Task, opts Options, cfg SchedulerConfig) ([]Phase, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, fmt.Errorf("build phases: %w", err)
	}

	// Bucket task nodes by level, preserving graph insertion order.
	byLevel := make(map[int][]string)
	var levelKeys []int
	for _, n := range g.Nodes() {
		if n.Kind != depgraph.KindTask {
			continue
		}
		lv := levels[n.ID]
		if _, seen := byLevel[lv]; !seen {
			levelKeys = append(levelKeys, lv)
		}
		byLevel[lv] = append(byLevel[lv], n.ID)
	}
	sort.Ints(levelKeys)

	phases := make([]Phase, 0, len(levelKeys))
	for i, lv := range levelKeys {
		ids := byLevel[lv]
		p := Phase{
			Index:       i,
			Level:       lv,
			Tasks:       append([]string(nil), ids...),
			Assignments: make(map[string][]string),
		}
		if i > 0 {
			p.DependsOn = []int{i - 1}
		}

		for _, id := range ids {
			team := teamFor(tasks, id, cfg.DefaultTeam)
			p.Assignments[team] = append(p.Assignments[team], id)
			if d := estimateFor(g, tasks, id); d > p.Expected {
				p.Expected = d
			}
		}
		p.ParallelGroups = groupPhase(ids, tasks, opts, cfg)
		phases = append(phases, p)
	}
	return phases, nil
}

// groupPhase partitions one phase's tasks into parallel bursts so that no
// team holds more than MaxSameTeamPerGroup tasks per burst and no burst
// exceeds the target parallelism. Tasks land in the first burst with room.
func groupPhase(ids []string, tasks map[string]*task.Task, opts Options, cfg SchedulerConfig) [][]string {
	maxPerTeam := cfg.MaxSameTeamPerGroup
	if maxPerTeam <= 0 {
		maxPerTeam = DefaultSchedulerConfig().MaxSameTeamPerGroup
	}

	var groups [][]string
	teamCounts := []map[string]int{}

	for _, id := range ids {
		team := teamFor(tasks, id, cfg.DefaultTeam)
		placed := false
		for gi := range groups {
			if opts.TargetParallelism > 0 && len(groups[gi]) >= opts.TargetParallelism {
				continue
			}
			if teamCounts[gi][team] >= maxPerTeam {
				continue
			}
			groups[gi] = append(groups[gi], id)
			teamCounts[gi][team]++
			placed = true
			break
		}
		if !placed {
			groups = append(groups, []string{id})
			teamCounts = append(teamCounts, map[string]int{team: 1})
		}
	}
	return groups
}

// PlanDuration sums phase durations: phases run strictly in sequence.
func PlanDuration(phases []Phase) time.Duration {
	var total time.Duration
	for i := range phases {
		total += phases[i].Expected
	}
	return total
}

// ParallelismRatio is the total task work divided by the plan duration:
// 1.0 means fully sequential, higher means more work overlapped.
func ParallelismRatio(tasks map[string]*task.Task, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	var work time.Duration
	for _, t := range tasks {
		work += t.Estimate
	}
	return float64(work) / float64(total)
}

func teamFor(tasks map[string]*task.Task, id, defaultTeam string) string {
	if t, ok := tasks[id]; ok && t.SuggestedTeam != "" {
		return t.SuggestedTeam
	}
	return defaultTeam
}

func estimateFor(g *depgraph.Graph, tasks map[string]*task.Task, id string) time.Duration {
	if t, ok := tasks[id]; ok && t.Estimate > 0 {
		return t.Estimate
	}
	if n, err := g.Node(id); err == nil {
		return n.Estimate
	}
	return 0
}
