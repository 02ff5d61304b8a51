package dag

import "testing"

func names(ids []string) func(string) string {
	return func(s string) string { return s }
}

func TestSequentialDag(t *testing.T) {
	tasks := []string{"task1", "task2", "task3"}
	d := Build(tasks, names(tasks))

	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	if len(d.Nodes[0].Dependencies) != 0 {
		t.Errorf("node 0 should have no dependencies")
	}
	if _, ok := d.Nodes[1].Dependencies[0]; !ok {
		t.Errorf("node 1 should depend on node 0")
	}
	if _, ok := d.Nodes[2].Dependencies[1]; !ok {
		t.Errorf("node 2 should depend on node 1")
	}
}

func TestParallelDag(t *testing.T) {
	tasks := []string{"task1", "task2", "task3"}
	d := BuildParallel(tasks, names(tasks))

	ready := d.ReadyTasks(map[int]struct{}{})
	if len(ready) != 3 {
		t.Errorf("ReadyTasks() = %d, want 3", len(ready))
	}
}

func TestReadyTasks(t *testing.T) {
	tasks := []string{"task1", "task2", "task3"}
	d := Build(tasks, names(tasks))

	ready := d.ReadyTasks(map[int]struct{}{})
	if len(ready) != 1 || ready[0].ID != 0 {
		t.Fatalf("expected only node 0 ready, got %v", ready)
	}

	completed := map[int]struct{}{0: {}}
	ready = d.ReadyTasks(completed)
	if len(ready) != 1 || ready[0].ID != 1 {
		t.Fatalf("expected only node 1 ready, got %v", ready)
	}
}

func TestNoCycle(t *testing.T) {
	tasks := []string{"task1", "task2"}
	d := Build(tasks, names(tasks))
	if d.HasCycle() {
		t.Error("sequential DAG should not have a cycle")
	}
}

func TestTopologicalOrder(t *testing.T) {
	tasks := []string{"task1", "task2", "task3"}
	d := Build(tasks, names(tasks))

	order := d.TopologicalOrder()
	want := []int{0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestMakeParallelAndAddDependency(t *testing.T) {
	tasks := []string{"task1", "task2", "task3"}
	d := Build(tasks, names(tasks))

	d.MakeParallel("task2")
	if _, ok := d.Nodes[1].Dependencies[0]; ok {
		t.Error("task2 should no longer depend on task1 after MakeParallel")
	}

	d.AddDependency("task3", "task1")
	if _, ok := d.Nodes[2].Dependencies[0]; !ok {
		t.Error("task3 should depend on task1 after AddDependency")
	}
}

func TestHasCycleDetectsExplicitCycle(t *testing.T) {
	tasks := []string{"a", "b"}
	d := BuildParallel(tasks, names(tasks))
	d.AddDependency("a", "b")
	d.AddDependency("b", "a")
	if !d.HasCycle() {
		t.Error("expected cycle to be detected")
	}
	if err := d.Validate(); err == nil {
		t.Error("Validate() should return an error for a cyclic graph")
	}
}
