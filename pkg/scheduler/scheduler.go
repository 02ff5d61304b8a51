// Package scheduler drives a parsed playbook against a resolved host list,
// producing a per-host result stream and a final recap. It is the core
// pipeline: normalize, tag filter, serial batch, gather facts, run the
// strategy loop, flush handlers at section boundaries, checkpoint after
// every task-host completion.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/checkpoint"
	"github.com/nexus-automation/nexus/pkg/dag"
	"github.com/nexus-automation/nexus/pkg/eval"
	"github.com/nexus-automation/nexus/pkg/handlers"
	"github.com/nexus-automation/nexus/pkg/retry"
	"github.com/nexus-automation/nexus/pkg/types"
	"github.com/nexus-automation/nexus/pkg/value"
)

// ModuleRegistry is the narrow lookup surface the scheduler needs from a
// module catalogue; satisfied by pkg/modules.ModuleRegistry.
type ModuleRegistry interface {
	GetModule(name string) (types.Module, error)
}

// ConnectionFactory returns a live connection to host, establishing one if
// necessary. Satisfied by pkg/connection.ConnectionManager.GetConnection
// bound to a types.ConnectionInfo built from the host.
type ConnectionFactory func(ctx context.Context, host types.Host) (types.Connection, error)

// Options configures a Scheduler run. Zero values are sensible defaults
// (linear strategy, serial=1, no tag filter, no checkpoint).
type Options struct {
	Modules          ModuleRegistry
	Connect          ConnectionFactory
	Checkpoint       *checkpoint.Store
	Circuits         *retry.CircuitBreakerRegistry
	EventCallback    types.EventCallback
	IncludeTags      []string
	SkipTags         []string
	MaxParallelHosts int
	CheckMode        bool
	DiffMode         bool
	AnyErrorsFatal   bool
	ForceHandlers    bool
	PlaybookPath     string
	InventoryPath    string
	PlaybookContent  []byte
}

// Scheduler executes playbooks per the options it was built with.
type Scheduler struct {
	opts Options
}

// New builds a Scheduler. Modules and Connect are required; everything
// else in opts has a workable zero value.
func New(opts Options) *Scheduler {
	if opts.Circuits == nil {
		opts.Circuits = retry.NewCircuitBreakerRegistry()
	}
	if opts.MaxParallelHosts <= 0 {
		opts.MaxParallelHosts = 10
	}
	return &Scheduler{opts: opts}
}

func (s *Scheduler) emit(ev types.Event) {
	if s.opts.EventCallback != nil {
		s.opts.EventCallback(ev)
	}
}

// RunPlaybookWithObserver runs RunPlaybook with an additional callback
// invoked alongside (not instead of) the scheduler's own configured
// EventCallback, for the duration of this single call. Used by pkg/plan
// to capture per-task outcomes without disturbing the scheduler's normal
// logging/metrics subscribers.
func (s *Scheduler) RunPlaybookWithObserver(ctx context.Context, pb *types.Playbook, inv types.Inventory, observer types.EventCallback) ([]*Recap, error) {
	original := s.opts.EventCallback
	s.opts.EventCallback = func(ev types.Event) {
		if original != nil {
			original(ev)
		}
		observer(ev)
	}
	defer func() { s.opts.EventCallback = original }()
	return s.RunPlaybook(ctx, pb, inv)
}

// RunPlaybook executes every play against hosts resolved from inv, in
// order, accumulating one Recap per play.
func (s *Scheduler) RunPlaybook(ctx context.Context, pb *types.Playbook, inv types.Inventory) ([]*Recap, error) {
	var recaps []*Recap
	var cpState *checkpoint.State
	if s.opts.Checkpoint != nil {
		existing, err := s.opts.Checkpoint.Resume(s.opts.PlaybookContent)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		if existing != nil {
			cpState = existing
		} else {
			cpState = checkpoint.NewState(s.opts.PlaybookPath, s.opts.InventoryPath, s.opts.PlaybookContent)
		}
	}

	for i := range pb.Plays {
		play := &pb.Plays[i]
		recap, err := s.runPlay(ctx, play, inv, cpState)
		recaps = append(recaps, recap)
		if err != nil {
			return recaps, err
		}
		if s.opts.AnyErrorsFatal && recap.AnyFailed() {
			return recaps, fmt.Errorf("play %q aborted: any_errors_fatal set and at least one host failed", play.Name)
		}
	}
	return recaps, nil
}

// runPlay resolves hosts, normalizes the task stream, and drives the
// serial/strategy loop for a single play.
func (s *Scheduler) runPlay(ctx context.Context, play *types.Play, inv types.Inventory, cp *checkpoint.State) (*Recap, error) {
	s.emit(types.Event{Type: types.EventPlayStart, Play: play.Name})
	recap := NewRecap(play.Name)

	hosts, err := resolvePlayHosts(play, inv)
	if err != nil {
		return recap, fmt.Errorf("resolving hosts for play %q: %w", play.Name, err)
	}

	preTasks := filterTags(play.PreTasks, s.opts.IncludeTags, s.opts.SkipTags)
	tasks := filterTags(play.Tasks, s.opts.IncludeTags, s.opts.SkipTags)
	postTasks := filterTags(play.PostTasks, s.opts.IncludeTags, s.opts.SkipTags)

	handlerMgr := handlers.NewManager[types.Task]()
	for _, h := range play.Handlers {
		handlerMgr.Register(h.Name, h.Listen, h)
	}

	strategy := play.Strategy
	if strategy == "" {
		strategy = "linear"
	}

	for _, batch := range splitHosts(hosts, play.Serial.Resolve(len(hosts))) {
		states := make(map[string]*hostState, len(batch))
		for _, h := range batch {
			states[h.Name] = newHostState(h, play.Vars)
		}

		if play.GatherFacts {
			factsTask := types.Task{Name: "Gathering Facts", Module: types.TypeSetup, Args: map[string]interface{}{}}
			s.runSection(ctx, []types.Task{factsTask}, states, "linear", play.Throttle, recap, handlerMgr, cp)
		}

		s.runSection(ctx, preTasks, states, strategy, play.Throttle, recap, handlerMgr, cp)
		s.flushHandlers(ctx, states, handlerMgr, recap, cp)

		s.runSection(ctx, tasks, states, strategy, play.Throttle, recap, handlerMgr, cp)
		s.flushHandlers(ctx, states, handlerMgr, recap, cp)

		s.runSection(ctx, postTasks, states, strategy, play.Throttle, recap, handlerMgr, cp)
		s.flushHandlers(ctx, states, handlerMgr, recap, cp)
	}

	s.emit(types.Event{Type: types.EventPlayComplete, Play: play.Name})
	s.emit(types.Event{Type: types.EventStats, Play: play.Name, Data: recap.Counts()})
	return recap, nil
}

// flushHandlers runs every pending handler, per host, in handler
// definition order, clearing the manager's queue.
func (s *Scheduler) flushHandlers(ctx context.Context, states map[string]*hostState, mgr *handlers.Manager[types.Task], recap *Recap, cp *checkpoint.State) {
	entries := mgr.Flush()
	for _, entry := range entries {
		hostsToRun := make(map[string]*hostState, len(entry.Hosts))
		for _, h := range entry.Hosts {
			if hs, ok := states[h]; ok && (!hs.failed || s.opts.ForceHandlers) {
				hostsToRun[h] = hs
			}
		}
		if len(hostsToRun) == 0 {
			continue
		}
		s.emit(types.Event{Type: types.EventHandlerStart, Task: entry.Name})
		s.runSection(ctx, []types.Task{entry.Handler}, hostsToRun, "linear", 0, recap, mgr, cp)
		s.emit(types.Event{Type: types.EventHandlerEnd, Task: entry.Name})
	}
}

// orderTasks builds a dependency DAG over tasks (sequential by default,
// the order the playbook lists them in) and returns them in topological
// order. This is the DAG the scheduler threads through both execution
// strategies; it also rejects a cycle instead of silently running tasks
// out of order, which a future add_dependency-style feature could
// introduce.
func orderTasks(tasks []types.Task) ([]types.Task, error) {
	if len(tasks) == 0 {
		return tasks, nil
	}
	d := dag.Build(tasks, func(t types.Task) string { return t.Name })
	if err := d.Validate(); err != nil {
		return nil, err
	}
	order := d.TopologicalOrder()
	ordered := make([]types.Task, len(order))
	for i, id := range order {
		ordered[i] = d.Nodes[id].Task
	}
	return ordered, nil
}

// runSection executes a task list against the given host states per the
// named strategy, recursing through block/rescue/always as it goes.
// playThrottle is the play's own `throttle` setting, used when a task
// doesn't set a tighter one of its own.
func (s *Scheduler) runSection(ctx context.Context, tasks []types.Task, states map[string]*hostState, strategy string, playThrottle int, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	ordered, err := orderTasks(tasks)
	if err != nil {
		for _, hs := range sortedStates(states) {
			s.emit(types.Event{Type: types.EventError, Host: hs.host.Name, Error: err})
			recap.recordFailed(hs.host.Name)
			hs.failed = true
		}
		return
	}
	switch strategy {
	case "free":
		s.runFree(ctx, ordered, states, playThrottle, recap, mgr, cp)
	default:
		s.runLinear(ctx, ordered, states, playThrottle, recap, mgr, cp)
	}
}

// taskConcurrency resolves the effective host concurrency cap for task,
// the tightest of: the task's own Throttle, the play's Throttle, and the
// scheduler-wide MaxParallelHosts.
func (s *Scheduler) taskConcurrency(task types.Task, playThrottle int) int {
	limit := s.opts.MaxParallelHosts
	if playThrottle > 0 && playThrottle < limit {
		limit = playThrottle
	}
	if task.Throttle > 0 && task.Throttle < limit {
		limit = task.Throttle
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// runLinear launches each task on every live host concurrently, capped at
// taskConcurrency(task, playThrottle) hosts at once, and waits for the
// whole batch before moving to the next task.
func (s *Scheduler) runLinear(ctx context.Context, tasks []types.Task, states map[string]*hostState, playThrottle int, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	for _, task := range tasks {
		s.emit(types.Event{Type: types.EventTaskStart, Task: task.Name})

		sem := make(chan struct{}, s.taskConcurrency(task, playThrottle))
		var wg sync.WaitGroup
		for _, hs := range sortedStates(states) {
			if hs.failed {
				continue
			}
			hs := hs
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				s.runTaskOnHost(ctx, task, hs, states, recap, mgr, cp)
			}()
		}
		wg.Wait()
	}
}

// runFree lets each host run the whole task sequence independently; a
// slow host never blocks the others. Each task still has its own
// taskConcurrency cap, shared across every host currently on it, so a
// narrow throttle has the same effect as under the linear strategy even
// though hosts are not in lockstep.
func (s *Scheduler) runFree(ctx context.Context, tasks []types.Task, states map[string]*hostState, playThrottle int, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	taskSems := make([]chan struct{}, len(tasks))
	for i, task := range tasks {
		taskSems[i] = make(chan struct{}, s.taskConcurrency(task, playThrottle))
	}

	g, _ := errgroup.WithContext(ctx)
	hostSem := make(chan struct{}, s.opts.MaxParallelHosts)
	for _, hs := range sortedStates(states) {
		hs := hs
		g.Go(func() error {
			hostSem <- struct{}{}
			defer func() { <-hostSem }()
			for i, task := range tasks {
				if hs.failed {
					break
				}
				taskSems[i] <- struct{}{}
				s.runTaskOnHost(ctx, task, hs, states, recap, mgr, cp)
				<-taskSems[i]
			}
			return nil
		})
	}
	_ = g.Wait()
}

func sortedStates(states map[string]*hostState) []*hostState {
	names := make([]string, 0, len(states))
	for n := range states {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*hostState, len(names))
	for i, n := range names {
		out[i] = states[n]
	}
	return out
}

// resolvePlayHosts resolves a play's `hosts` field (string, []interface{},
// or a single Ansible-style pattern expression) via the inventory,
// preferring ResolvePattern when the inventory implementation supports
// group algebra.
func resolvePlayHosts(play *types.Play, inv types.Inventory) ([]types.Host, error) {
	type patternResolver interface {
		ResolvePattern(pattern string) ([]types.Host, error)
	}

	resolveOne := func(pattern string) ([]types.Host, error) {
		if pr, ok := inv.(patternResolver); ok {
			return pr.ResolvePattern(pattern)
		}
		return inv.GetHosts(pattern)
	}

	switch h := play.Hosts.(type) {
	case string:
		return resolveOne(h)
	case []interface{}:
		seen := map[string]types.Host{}
		for _, item := range h {
			str, ok := item.(string)
			if !ok {
				continue
			}
			matched, err := resolveOne(str)
			if err != nil {
				return nil, err
			}
			for _, host := range matched {
				seen[host.Name] = host
			}
		}
		names := make([]string, 0, len(seen))
		for n := range seen {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]types.Host, len(names))
		for i, n := range names {
			out[i] = seen[n]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid hosts format in play %q", play.Name)
	}
}

// splitHosts slices hosts sequentially into batches of the given sizes,
// which must sum to len(hosts) (SerialSpec.Resolve guarantees this).
func splitHosts(hosts []types.Host, sizes []int) [][]types.Host {
	if len(sizes) <= 1 {
		return [][]types.Host{hosts}
	}
	batches := make([][]types.Host, 0, len(sizes))
	i := 0
	for _, n := range sizes {
		end := i + n
		if end > len(hosts) {
			end = len(hosts)
		}
		batches = append(batches, hosts[i:end])
		i = end
	}
	return batches
}

// hostState carries one host's live variable layer and failure status
// across an entire play.
type hostState struct {
	host    types.Host
	ctx     *eval.Context
	mu      sync.Mutex
	failed  bool
	rescued bool
}

func newHostState(host types.Host, playVars map[string]interface{}) *hostState {
	layer := map[string]value.Value{}
	for k, v := range playVars {
		layer[k] = value.FromGo(v)
	}
	for k, v := range host.Variables {
		layer[k] = value.FromGo(v)
	}
	layer["inventory_hostname"] = value.String(host.Name)
	layer["ansible_host"] = value.String(host.Address)
	return &hostState{host: host, ctx: eval.NewContext().Push(layer)}
}

func (hs *hostState) setVar(name string, v interface{}) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.ctx = hs.ctx.Push(map[string]value.Value{name: value.FromGo(v)})
}

// evalCondition evaluates a `when`/`until`/`failed_when`/`changed_when`
// style field: a parsed InterpolatedString expression if one was scanned,
// the raw boolean/list value's truthiness otherwise, and true if the raw
// field was entirely absent.
func evalCondition(raw interface{}, parsed *ast.InterpolatedString, ctx *eval.Context) (bool, error) {
	if parsed != nil {
		v, err := eval.NewEvaluator(ctx).Evaluate(parsed)
		if err != nil {
			return false, err
		}
		return v.Truthy(), nil
	}
	if raw == nil {
		return true, nil
	}
	return value.FromGo(raw).Truthy(), nil
}
