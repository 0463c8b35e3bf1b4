// Package graph provides a dependency graph for task scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task depends on an ID that is not in the graph.
var ErrUnknownDependency = errors.New("unknown dependency")

// ErrDuplicateTask indicates two tasks share an ID.
var ErrDuplicateTask = errors.New("duplicate task id")

// ErrEmptyTaskID indicates a task has no ID.
var ErrEmptyTaskID = errors.New("empty task id")

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// order keeps task IDs in planner order so traversals are deterministic.
	order []string
	// nodes maps task ID to the task itself.
	nodes map[string]models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges  map[string][]string
	logger zerolog.Logger
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:  make(map[string]models.Task),
		edges:  make(map[string][]string),
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the logger used for debug tracing.
func (g *DependencyGraph) SetLogger(logger zerolog.Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logger = logger
}

// Build constructs the dependency graph from a slice of tasks.
// Returns an error if an ID is empty or duplicated, a dependency references
// an unknown task, or a cycle is detected.
func (g *DependencyGraph) Build(tasks []models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Debug().Int("tasks", len(tasks)).Msg("building dependency graph")

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if task.ID == "" {
			return ErrEmptyTaskID
		}
		if _, exists := g.nodes[task.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
		}
		g.order = append(g.order, task.ID)
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	// Second pass: build edges from the dependency lists.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("%w: task %s depends on %s", ErrUnknownDependency, task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.logger.Debug().Int("nodes", len(g.nodes)).Msg("dependency graph built")
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them.
// Returns an error if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Depth returns the number of tasks on the longest dependency chain.
// An empty graph has depth 0.
func (g *DependencyGraph) Depth() (int, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return 0, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	level := make(map[string]int, len(order))
	depth := 0
	for _, id := range order {
		l := 1
		for _, depID := range g.edges[id] {
			if level[depID]+1 > l {
				l = level[depID] + 1
			}
		}
		level[id] = l
		if l > depth {
			depth = l
		}
	}
	return depth, nil
}

// GetTask returns the task for a given ID.
func (g *DependencyGraph) GetTask(taskID string) (models.Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.nodes[taskID]
	return t, ok
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// GetDependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Validate checks that tasks form a well-formed graph: non-empty unique IDs,
// no dangling dependency references, and no cycles.
func Validate(tasks []models.Task) error {
	return New().Build(tasks)
}

// Ready returns, in input order, the tasks that have no recorded output and
// whose dependencies all have one. A dependency on an ID that never gets an
// output keeps the task unready forever.
func Ready(tasks []models.Task, outputs models.AgentOutputs) []models.Task {
	var ready []models.Task
	for _, t := range tasks {
		if outputs.Has(t.ID) {
			continue
		}
		if t.Ready(outputs) {
			ready = append(ready, t)
		}
	}
	return ready
}

// Pending returns the IDs of tasks without a recorded output, in input order.
func Pending(tasks []models.Task, outputs models.AgentOutputs) []string {
	var pending []string
	for _, t := range tasks {
		if !outputs.Has(t.ID) {
			pending = append(pending, t.ID)
		}
	}
	return pending
}
