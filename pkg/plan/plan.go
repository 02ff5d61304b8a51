// Package plan implements the dry-run planner: it runs a playbook through
// the scheduler in check mode and reports, per host and task, whether the
// task would change anything, without applying any side effects.
package plan

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexus-automation/nexus/pkg/scheduler"
	"github.com/nexus-automation/nexus/pkg/types"
)

// TaskPlan is the predicted outcome of one task against one host.
type TaskPlan struct {
	Task       string `json:"task"`
	WillChange bool   `json:"will_change"`
	Reason     string `json:"reason"`
	Diff       string `json:"diff,omitempty"`
	Failed     bool   `json:"failed,omitempty"`
}

// HostPlan is the ordered list of task plans for one host.
type HostPlan struct {
	Host  string     `json:"host"`
	Tasks []TaskPlan `json:"tasks"`
}

// Plan is the full dry-run output for a playbook run: one HostPlan per
// host touched, keyed by host name for O(1) lookup and also exposed as a
// deterministically-ordered slice for display.
type Plan struct {
	mu    sync.Mutex
	hosts map[string]*HostPlan
}

func newPlan() *Plan {
	return &Plan{hosts: map[string]*HostPlan{}}
}

func (p *Plan) record(host, task string, changed, failed bool, reason, diff string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hp, ok := p.hosts[host]
	if !ok {
		hp = &HostPlan{Host: host}
		p.hosts[host] = hp
	}
	hp.Tasks = append(hp.Tasks, TaskPlan{Task: task, WillChange: changed, Reason: reason, Diff: diff, Failed: failed})
}

// Hosts returns one HostPlan per touched host, sorted by host name.
func (p *Plan) Hosts() []*HostPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.hosts))
	for n := range p.hosts {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*HostPlan, len(names))
	for i, n := range names {
		out[i] = p.hosts[n]
	}
	return out
}

// AnyChanges reports whether any task across any host is predicted to
// change state.
func (p *Plan) AnyChanges() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, hp := range p.hosts {
		for _, t := range hp.Tasks {
			if t.WillChange {
				return true
			}
		}
	}
	return false
}

// Run drives the given scheduler in check mode, capturing every
// EventHostOk/EventHostFailed/EventHostSkipped as a TaskPlan entry rather
// than letting the scheduler's own configured EventCallback be the only
// observer. The scheduler is expected to have been built with
// Options.CheckMode = true so that module invocations predict rather than
// apply changes.
func Run(ctx context.Context, sched *scheduler.Scheduler, pb *types.Playbook, inv types.Inventory) (*Plan, error) {
	p := newPlan()

	recaps, err := sched.RunPlaybookWithObserver(ctx, pb, inv, func(ev types.Event) {
		switch ev.Type {
		case types.EventHostOk:
			reason := "no change"
			diff := ""
			if ev.Result != nil {
				if ev.Result.Changed {
					reason = ev.Result.Message
				}
				if ev.Result.Diff != nil {
					diff = ev.Result.Diff.Diff
				}
			}
			p.record(ev.Host, ev.Task, ev.Result != nil && ev.Result.Changed, false, reason, diff)
		case types.EventHostFailed:
			msg := ""
			if ev.Error != nil {
				msg = ev.Error.Error()
			}
			p.record(ev.Host, ev.Task, false, true, msg, "")
		case types.EventHostSkipped:
			p.record(ev.Host, ev.Task, false, false, "skipped", "")
		}
	})
	if err != nil {
		return p, fmt.Errorf("dry run: %w", err)
	}
	_ = recaps
	return p, nil
}
