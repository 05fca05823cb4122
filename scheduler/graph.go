package scheduler

import (
	"fmt"

	"github.com/hupe1980/turnmesh/core"
)

// Graph is a validated, immutable DAG of tasks.
type Graph struct {
	tasks      []core.Task    // registration order
	index      map[string]int // name -> position in tasks
	dependents map[string][]string
	order      []string // topological, registration order among peers
}

// NewGraph validates tasks and builds the graph. Duplicate names, unknown
// dependencies and cycles are rejected.
func NewGraph(tasks []core.Task) (*Graph, error) {
	g := &Graph{
		tasks:      append([]core.Task(nil), tasks...),
		index:      make(map[string]int, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}

	for i, t := range g.tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("task at position %d has no name", i)
		}
		if _, dup := g.index[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateTask, t.Name)
		}
		g.index[t.Name] = i
	}

	for _, t := range g.tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("%w: task %s depends on %s", core.ErrUnknownDependency, t.Name, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], t.Name)
		}
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// sort runs Kahn's algorithm. Ready tasks are emitted in registration order
// so the result is deterministic.
func (g *Graph) sort() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	for _, t := range g.tasks {
		inDegree[t.Name] = len(t.Dependencies)
	}

	var queue []string
	for _, t := range g.tasks {
		if inDegree[t.Name] == 0 {
			queue = append(queue, t.Name)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dep := range g.dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.tasks) {
		var stuck []string
		for _, t := range g.tasks {
			if inDegree[t.Name] > 0 {
				stuck = append(stuck, t.Name)
			}
		}
		return nil, fmt.Errorf("%w among %v", core.ErrCycle, stuck)
	}

	return order, nil
}

// With returns a new graph that also contains t.
func (g *Graph) With(t core.Task) (*Graph, error) {
	var tasks []core.Task
	if g != nil {
		tasks = append(tasks, g.tasks...)
	}
	return NewGraph(append(tasks, t))
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.tasks)
}

// Task returns the named task.
func (g *Graph) Task(name string) (core.Task, bool) {
	i, ok := g.index[name]
	if !ok {
		return core.Task{}, false
	}
	return g.tasks[i], true
}

// Tasks returns the tasks in registration order.
func (g *Graph) Tasks() []core.Task {
	return append([]core.Task(nil), g.tasks...)
}

// TopologicalOrder returns task names such that every task follows its dependencies.
func (g *Graph) TopologicalOrder() []string {
	return append([]string(nil), g.order...)
}

// Dependents returns the names of tasks that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}
