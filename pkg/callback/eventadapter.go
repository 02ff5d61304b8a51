package callback

import (
	"github.com/nexus-automation/nexus/pkg/types"
)

// EventAdapter bridges the scheduler's types.Event stream into a
// CallbackManager, so callback plugins written against the play/task/
// result-shaped interface (JSONCallback, ProfileTasksCallback, ...) can
// still observe a run driven through scheduler.Options.EventCallback.
type EventAdapter struct {
	manager *CallbackManager
}

// NewEventAdapter wraps manager so it can be driven by scheduler events.
func NewEventAdapter(manager *CallbackManager) *EventAdapter {
	return &EventAdapter{manager: manager}
}

// Callback returns a types.EventCallback suitable for
// scheduler.Options.EventCallback or chaining via chainCallbacks.
func (a *EventAdapter) Callback() types.EventCallback {
	return a.handle
}

func (a *EventAdapter) handle(ev types.Event) {
	switch ev.Type {
	case types.EventPlayStart:
		a.manager.OnPlayStart(&types.Play{Name: ev.Play})
	case types.EventPlayComplete:
		a.manager.OnPlayEnd(&types.Play{Name: ev.Play}, nil)
	case types.EventTaskStart:
		hosts := []types.Host{}
		if ev.Host != "" {
			hosts = append(hosts, types.Host{Name: ev.Host})
		}
		a.manager.OnTaskStart(&types.Task{Name: ev.Task}, hosts)
	case types.EventHostOk, types.EventHostFailed, types.EventHostUnreachable:
		if ev.Result != nil {
			a.manager.OnTaskResult(&types.Task{Name: ev.Task}, ev.Result)
		}
	case types.EventStats:
		a.manager.OnRunnerEnd()
	}
}
