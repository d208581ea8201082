package schedule_test

import (
	"testing"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

func taskNode(id string) depgraph.Node {
	return depgraph.Node{ID: id, Kind: depgraph.KindTask, Name: id, Estimate: 10 * time.Minute}
}

func blockingEdge(from, to string) depgraph.Edge {
	return depgraph.Edge{From: from, To: to, Kind: depgraph.EdgeHard, Weight: 1, Blocking: true}
}

func planTask(id, team string, estimate time.Duration) *task.Task {
	return &task.Task{
		ID:            id,
		Title:         id,
		SuggestedTeam: team,
		Status:        task.StatusPending,
		Estimate:      estimate,
	}
}

func taskMap(ts ...*task.Task) map[string]*task.Task {
	m := make(map[string]*task.Task, len(ts))
	for _, t := range ts {
		m[t.ID] = t
	}
	return m
}

func TestBuildPhases_LevelsRespectBlockingEdges(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b"), taskNode("c"), taskNode("d")},
		[]depgraph.Edge{
			blockingEdge("a", "b"), blockingEdge("a", "c"), blockingEdge("b", "d"),
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	tasks := taskMap(
		planTask("a", "alpha", 10*time.Minute),
		planTask("b", "alpha", 10*time.Minute),
		planTask("c", "beta", 10*time.Minute),
		planTask("d", "beta", 10*time.Minute),
	)

	phases, err := schedule.BuildPhases(g, tasks, schedule.Options{}, schedule.DefaultSchedulerConfig())
	if err != nil {
		t.Fatal(err)
	}

	// For every blocking edge, the dependency's level must be strictly lower.
	phaseOf := make(map[string]int)
	levelOf := make(map[string]int)
	for _, p := range phases {
		for _, id := range p.Tasks {
			if _, dup := phaseOf[id]; dup {
				t.Fatalf("task %s appears in two phases", id)
			}
			phaseOf[id] = p.Index
			levelOf[id] = p.Level
		}
	}
	for _, e := range g.Edges() {
		if e.Blocking && levelOf[e.From] >= levelOf[e.To] {
			t.Fatalf("edge %s->%s: level %d !< %d", e.From, e.To, levelOf[e.From], levelOf[e.To])
		}
	}
	if len(phaseOf) != 4 {
		t.Fatalf("expected all 4 tasks scheduled, got %d", len(phaseOf))
	}
}

func TestBuildPhases_IndependentTasksShareOnePhase(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b"), taskNode("c")}, nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	tasks := taskMap(
		planTask("a", "alpha", 10*time.Minute),
		planTask("b", "alpha", 10*time.Minute),
		planTask("c", "alpha", 10*time.Minute),
	)

	phases, err := schedule.BuildPhases(g, tasks, schedule.Options{}, schedule.DefaultSchedulerConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 1 {
		t.Fatalf("expected 1 phase, got %d", len(phases))
	}
	if len(phases[0].Tasks) != 3 {
		t.Fatalf("expected 3 tasks in phase, got %d", len(phases[0].Tasks))
	}
	// Three same-team tasks fit in one parallel group (limit is 3).
	if len(phases[0].ParallelGroups) != 1 {
		t.Fatalf("expected 1 parallel group, got %v", phases[0].ParallelGroups)
	}
}

func TestBuildPhases_TeamGroupLimit(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b"), taskNode("c"), taskNode("d")}, nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	tasks := taskMap(
		planTask("a", "alpha", 10*time.Minute),
		planTask("b", "alpha", 10*time.Minute),
		planTask("c", "alpha", 10*time.Minute),
		planTask("d", "alpha", 10*time.Minute),
	)

	phases, err := schedule.BuildPhases(g, tasks, schedule.Options{}, schedule.DefaultSchedulerConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Four tasks of one team exceed the per-group limit of 3: two bursts.
	if len(phases[0].ParallelGroups) != 2 {
		t.Fatalf("expected 2 parallel groups, got %v", phases[0].ParallelGroups)
	}
}

func TestBuildPhases_TargetParallelismCapsGroups(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b"), taskNode("c")}, nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	tasks := taskMap(
		planTask("a", "alpha", 10*time.Minute),
		planTask("b", "beta", 10*time.Minute),
		planTask("c", "gamma", 10*time.Minute),
	)

	opts := schedule.Options{TargetParallelism: 2}
	phases, err := schedule.BuildPhases(g, tasks, opts, schedule.DefaultSchedulerConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, group := range phases[0].ParallelGroups {
		if len(group) > 2 {
			t.Fatalf("group exceeds target parallelism: %v", group)
		}
	}
}

func TestBuildPhases_ExpectedIsSlowestTask(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b")}, nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	tasks := taskMap(
		planTask("a", "alpha", 10*time.Minute),
		planTask("b", "beta", 25*time.Minute),
	)

	phases, err := schedule.BuildPhases(g, tasks, schedule.Options{}, schedule.DefaultSchedulerConfig())
	if err != nil {
		t.Fatal(err)
	}
	if phases[0].Expected != 25*time.Minute {
		t.Fatalf("expected phase bound 25m, got %v", phases[0].Expected)
	}
}

func TestBuildPhases_RejectsCycles(t *testing.T) {
	g, err := depgraph.Build(
		[]depgraph.Node{taskNode("a"), taskNode("b")},
		[]depgraph.Edge{blockingEdge("a", "b"), blockingEdge("b", "a")},
	)
	if err != nil {
		t.Fatal(err)
	}
	_, err = schedule.BuildPhases(g, taskMap(), schedule.Options{}, schedule.DefaultSchedulerConfig())
	if err == nil {
		t.Fatal("expected error for cyclic graph")
	}
}

func TestParallelismRatio(t *testing.T) {
	tasks := taskMap(
		planTask("a", "alpha", 30*time.Minute),
		planTask("b", "beta", 30*time.Minute),
	)
	// Both run in one 30m phase: 60m of work in 30m wall time.
	ratio := schedule.ParallelismRatio(tasks, 30*time.Minute)
	if ratio != 2.0 {
		t.Fatalf("expected ratio 2.0, got %v", ratio)
	}
}
