package schedule

import (
	"sort"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

// AllocatorConfig carries the allocator's tunable watermarks. The
// defaults mirror a standard working day; they are conventions, not
// invariants, and live in configuration.
type AllocatorConfig struct {
	Capacity        time.Duration // standard team capacity per plan
	HighWater       time.Duration // above this a team is overloaded
	LowWater        time.Duration // below this a team is underutilized
	MaxMovesPerPass int           // rebalancing moves per pass
}

// DefaultAllocatorConfig returns the standard allocator tuning.
func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		Capacity:        480 * time.Minute,
		HighWater:       400 * time.Minute,
		LowWater:        120 * time.Minute,
		MaxMovesPerPass: 2,
	}
}

// Scorer rates how well a team matches a task; higher is better. A nil
// scorer falls back to first-available selection.
type Scorer func(teamID string, t *task.Task) float64

// ComputeAllocations groups tasks by team and computes utilization
// against the configured capacity. Teams listed in priorityTeams come
// first (and appear even when they hold no tasks); the rest follow in
// lexicographic order for deterministic output.
func ComputeAllocations(tasks map[string]*task.Task, priorityTeams []string, defaultTeam string, cfg AllocatorConfig) []Allocation {
	byTeam := make(map[string][]string)
	for _, id := range sortedTaskIDs(tasks) {
		t := tasks[id]
		team := t.SuggestedTeam
		if team == "" {
			team = defaultTeam
		}
		byTeam[team] = append(byTeam[team], id)
	}

	teams := orderedTeams(byTeam, priorityTeams)
	out := make([]Allocation, 0, len(teams))
	for _, team := range teams {
		a := Allocation{Team: team, Tasks: byTeam[team]}
		for _, id := range a.Tasks {
			t := tasks[id]
			a.Assigned += t.Estimate
			if t.Estimate > a.PeakTime {
				a.PeakTime = t.Estimate
			}
		}
		if cfg.Capacity > 0 {
			a.Utilization = float64(a.Assigned) / float64(cfg.Capacity)
		}
		if buffer := cfg.Capacity - a.Assigned; buffer > 0 {
			a.BufferTime = buffer
		}
		out = append(out, a)
	}
	return out
}

// Rebalance moves work from overloaded teams to underutilized ones. Only
// parallelizable, non-critical tasks move, at most MaxMovesPerPass per
// call, and a destination is never pushed past the high-water mark. The
// moves rewrite suggested teams and phase assignments only; phase and
// level structure is untouched, so dependency ordering cannot break.
func Rebalance(p *Plan, scorer Scorer, cfg AllocatorConfig) []Move {
	load := make(map[string]time.Duration)
	for _, a := range p.Allocations {
		load[a.Team] = a.Assigned
	}

	var overloaded, underutilized []string
	for _, a := range p.Allocations {
		switch {
		case a.Assigned > cfg.HighWater:
			overloaded = append(overloaded, a.Team)
		case a.Assigned < cfg.LowWater:
			underutilized = append(underutilized, a.Team)
		}
	}
	if len(overloaded) == 0 || len(underutilized) == 0 {
		return nil
	}

	var moves []Move
	for _, team := range overloaded {
		if len(moves) >= cfg.MaxMovesPerPass {
			break
		}
		for _, id := range tasksOfTeam(p, team) {
			if len(moves) >= cfg.MaxMovesPerPass {
				break
			}
			if load[team] <= cfg.HighWater {
				break
			}
			t := p.Tasks[id]
			if t == nil || !t.Movable() {
				continue
			}
			// A task already dispatched or finished stays where it is;
			// moving it would not change where the work happens.
			if t.Status == task.StatusRunning || t.Status == task.StatusCompleted {
				continue
			}

			dest := pickDestination(t, underutilized, load, scorer, cfg)
			if dest == "" {
				continue
			}

			t.SuggestedTeam = dest
			reassignInPhases(p, id, team, dest)
			load[team] -= t.Estimate
			load[dest] += t.Estimate
			moves = append(moves, Move{TaskID: id, FromTeam: team, ToTeam: dest})
		}
	}

	if len(moves) > 0 {
		p.Allocations = ComputeAllocations(p.Tasks, p.Options.PriorityTeams, "", cfg)
	}
	return moves
}

// pickDestination chooses the underutilized team with the best capability
// score, or the first candidate with room when no scorer is configured.
func pickDestination(t *task.Task, candidates []string, load map[string]time.Duration, scorer Scorer, cfg AllocatorConfig) string {
	best := ""
	bestScore := -1.0
	for _, team := range candidates {
		if load[team]+t.Estimate > cfg.HighWater {
			continue
		}
		if scorer == nil {
			return team // first available
		}
		if score := scorer(team, t); score > bestScore {
			bestScore = score
			best = team
		}
	}
	return best
}

func tasksOfTeam(p *Plan, team string) []string {
	var ids []string
	for _, id := range sortedTaskIDs(p.Tasks) {
		t := p.Tasks[id]
		if t.SuggestedTeam == team {
			ids = append(ids, id)
		}
	}
	return ids
}

// reassignInPhases moves a task ID between team assignment lists without
// touching phase membership.
func reassignInPhases(p *Plan, taskID, from, to string) {
	for i := range p.Phases {
		ph := &p.Phases[i]
		src := ph.Assignments[from]
		for j, id := range src {
			if id != taskID {
				continue
			}
			ph.Assignments[from] = append(src[:j], src[j+1:]...)
			if len(ph.Assignments[from]) == 0 {
				delete(ph.Assignments, from)
			}
			ph.Assignments[to] = append(ph.Assignments[to], taskID)
			break
		}
	}
}

func orderedTeams(byTeam map[string][]string, priorityTeams []string) []string {
	seen := make(map[string]bool, len(byTeam))
	var teams []string
	for _, team := range priorityTeams {
		if !seen[team] {
			seen[team] = true
			teams = append(teams, team)
		}
	}
	var rest []string
	for team := range byTeam {
		if !seen[team] {
			rest = append(rest, team)
		}
	}
	sort.Strings(rest)
	return append(teams, rest...)
}

func sortedTaskIDs(tasks map[string]*task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
