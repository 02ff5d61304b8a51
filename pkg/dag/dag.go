// Package dag builds and walks the task dependency graph used by the
// scheduler to decide execution order within a play: sequential by
// default, with escape hatches for explicit dependencies and parallel
// execution groups.
package dag

import "fmt"

// Node is one task in the graph: its zero-based position, the task
// payload itself, and the set of node IDs it depends on.
type Node[T any] struct {
	ID           int
	Task         T
	Dependencies map[int]struct{}
}

// TaskDag is a directed graph over task nodes, indexed both by position
// and by task name for add_dependency-style lookups.
type TaskDag[T any] struct {
	Nodes    []*Node[T]
	nameToID map[string]int
}

// Build constructs a DAG where each task depends on the one before it,
// the default "serial" execution order within a play.
func Build[T any](tasks []T, nameOf func(T) string) *TaskDag[T] {
	d := newDag(tasks, nameOf)
	for i := 1; i < len(d.Nodes); i++ {
		d.Nodes[i].Dependencies[i-1] = struct{}{}
	}
	return d
}

// BuildParallel constructs a DAG with no implicit dependencies between
// tasks, used for a play's free strategy or an explicitly parallel block.
func BuildParallel[T any](tasks []T, nameOf func(T) string) *TaskDag[T] {
	return newDag(tasks, nameOf)
}

func newDag[T any](tasks []T, nameOf func(T) string) *TaskDag[T] {
	d := &TaskDag[T]{
		Nodes:    make([]*Node[T], len(tasks)),
		nameToID: make(map[string]int, len(tasks)),
	}
	for i, t := range tasks {
		d.nameToID[nameOf(t)] = i
		d.Nodes[i] = &Node[T]{ID: i, Task: t, Dependencies: map[int]struct{}{}}
	}
	return d
}

// Len reports the number of nodes in the graph.
func (d *TaskDag[T]) Len() int { return len(d.Nodes) }

// IsEmpty reports whether the graph has no nodes.
func (d *TaskDag[T]) IsEmpty() bool { return len(d.Nodes) == 0 }

// ReadyTasks returns the nodes not yet in completed whose dependencies
// are all satisfied, in node-ID order.
func (d *TaskDag[T]) ReadyTasks(completed map[int]struct{}) []*Node[T] {
	var ready []*Node[T]
	for _, n := range d.Nodes {
		if _, done := completed[n.ID]; done {
			continue
		}
		allSatisfied := true
		for dep := range n.Dependencies {
			if _, ok := completed[dep]; !ok {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			ready = append(ready, n)
		}
	}
	return ready
}

// AddDependency records that taskName must run after dependsOn. A no-op
// if either name is unknown (mirrors the lenient original behavior); no
// error is reported for an unknown name.
func (d *TaskDag[T]) AddDependency(taskName, dependsOn string) {
	taskID, ok1 := d.nameToID[taskName]
	depID, ok2 := d.nameToID[dependsOn]
	if !ok1 || !ok2 {
		return
	}
	d.Nodes[taskID].Dependencies[depID] = struct{}{}
}

// MakeParallel removes the implicit sequential dependency on the task
// immediately before taskName, letting it run concurrently with it.
func (d *TaskDag[T]) MakeParallel(taskName string) {
	taskID, ok := d.nameToID[taskName]
	if !ok || taskID == 0 {
		return
	}
	delete(d.Nodes[taskID].Dependencies, taskID-1)
}

// HasCycle reports whether the dependency graph contains a cycle.
func (d *TaskDag[T]) HasCycle() bool {
	visited := map[int]struct{}{}
	recStack := map[int]struct{}{}
	for _, n := range d.Nodes {
		if d.hasCycleFrom(n.ID, visited, recStack) {
			return true
		}
	}
	return false
}

func (d *TaskDag[T]) hasCycleFrom(id int, visited, recStack map[int]struct{}) bool {
	if _, ok := recStack[id]; ok {
		return true
	}
	if _, ok := visited[id]; ok {
		return false
	}
	visited[id] = struct{}{}
	recStack[id] = struct{}{}
	for dep := range d.Nodes[id].Dependencies {
		if d.hasCycleFrom(dep, visited, recStack) {
			return true
		}
	}
	delete(recStack, id)
	return false
}

// TopologicalOrder returns node IDs in an order where every dependency
// precedes its dependents.
func (d *TaskDag[T]) TopologicalOrder() []int {
	var result []int
	visited := map[int]struct{}{}
	var visit func(id int)
	visit = func(id int) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		for dep := range d.Nodes[id].Dependencies {
			visit(dep)
		}
		result = append(result, id)
	}
	for _, n := range d.Nodes {
		visit(n.ID)
	}
	return result
}

// Validate runs the cycle check and returns an error if a cycle is
// present, so callers get a usable message instead of a silent
// partial order from TopologicalOrder.
func (d *TaskDag[T]) Validate() error {
	if d.HasCycle() {
		return fmt.Errorf("task dependency graph contains a cycle")
	}
	return nil
}
