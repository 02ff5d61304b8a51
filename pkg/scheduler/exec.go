package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/nexus-automation/nexus/pkg/checkpoint"
	"github.com/nexus-automation/nexus/pkg/eval"
	"github.com/nexus-automation/nexus/pkg/handlers"
	"github.com/nexus-automation/nexus/pkg/retry"
	"github.com/nexus-automation/nexus/pkg/types"
	"github.com/nexus-automation/nexus/pkg/value"
)

// runTaskOnHost executes one task (or, for a block task, its
// block/rescue/always children) against a single host, updating recap
// counts, checkpointing, and enqueuing handler notifications as it goes.
// states gives access to every host in the current batch, needed only to
// support delegate_facts (recording a delegated task's register value
// against the delegate host as well as the originating one).
func (s *Scheduler) runTaskOnHost(ctx context.Context, task types.Task, hs *hostState, states map[string]*hostState, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	if task.IsBlock() {
		s.runBlock(ctx, task, hs, states, recap, mgr, cp)
		return
	}

	if cp != nil && cp.IsCompleted(task.Name, hs.host.Name) {
		return
	}

	ok, err := evalCondition(task.When, task.WhenExpr, hs.ctx)
	if err != nil {
		s.emit(types.Event{Type: types.EventError, Task: task.Name, Host: hs.host.Name, Error: err})
		recap.recordFailed(hs.host.Name)
		hs.failed = true
		return
	}
	if !ok {
		s.emit(types.Event{Type: types.EventHostSkipped, Task: task.Name, Host: hs.host.Name})
		recap.recordSkipped(hs.host.Name)
		return
	}

	if task.LoopExpr != nil || task.Loop != nil || task.WithItems != nil {
		s.runLooped(ctx, task, hs, states, recap, mgr, cp)
		return
	}

	result := s.dispatch(ctx, task, hs)
	s.finishTaskResult(ctx, task, hs, states, result, recap, mgr, cp)
}

// runBlock executes block children in sequence; on a failing child it
// runs rescue children (recovering the host if rescue completes clean),
// and always runs unconditionally afterward.
func (s *Scheduler) runBlock(ctx context.Context, task types.Task, hs *hostState, states map[string]*hostState, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	for _, child := range task.Block {
		if hs.failed {
			break
		}
		s.runTaskOnHost(ctx, child, hs, states, recap, mgr, cp)
	}

	if hs.failed && len(task.Rescue) > 0 {
		hs.failed = false
		for _, child := range task.Rescue {
			if hs.failed {
				break
			}
			s.runTaskOnHost(ctx, child, hs, states, recap, mgr, cp)
		}
		if !hs.failed {
			hs.rescued = true
			recap.recordRescued(hs.host.Name)
		}
	}

	for _, child := range task.Always {
		s.runTaskOnHost(ctx, child, hs, states, recap, mgr, cp)
	}
}

// runLooped evaluates the loop expression to a list, runs the task once
// per item with the loop variable bound in a per-iteration layer, and
// aggregates results into a list when register is set.
func (s *Scheduler) runLooped(ctx context.Context, task types.Task, hs *hostState, states map[string]*hostState, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	items, err := resolveLoopItems(task, hs.ctx)
	if err != nil {
		s.emit(types.Event{Type: types.EventError, Task: task.Name, Host: hs.host.Name, Error: err})
		recap.recordFailed(hs.host.Name)
		hs.failed = true
		return
	}

	loopVar := "item"
	if task.LoopControl != nil {
		if lv, ok := task.LoopControl["loop_var"].(string); ok && lv != "" {
			loopVar = lv
		}
	}

	var aggregated []interface{}
	for i, item := range items {
		if hs.failed {
			break
		}
		iterCtx := hs.ctx.Push(map[string]value.Value{loopVar: item})
		iterHs := &hostState{host: hs.host, ctx: iterCtx}

		ok, err := evalCondition(task.When, task.WhenExpr, iterCtx)
		if err != nil {
			s.emit(types.Event{Type: types.EventError, Task: task.Name, Host: hs.host.Name, Error: err})
			recap.recordFailed(hs.host.Name)
			hs.failed = true
			return
		}
		if !ok {
			recap.recordSkipped(hs.host.Name)
			continue
		}

		result := s.dispatch(ctx, task, iterHs)
		s.applyPostConditions(task, iterCtx, result)
		aggregated = append(aggregated, resultToGo(result))

		s.finalizeSingleResult(ctx, task, hs, result, i == len(items)-1, recap, mgr, cp)
	}

	if task.Register != "" {
		registered := map[string]interface{}{"results": aggregated}
		hs.setVar(task.Register, registered)
		s.delegateRegisteredFacts(task, hs, states, registered)
	}
}

func resolveLoopItems(task types.Task, ctx *eval.Context) ([]value.Value, error) {
	if task.LoopExpr != nil {
		v, err := eval.NewEvaluator(ctx).Evaluate(task.LoopExpr)
		if err != nil {
			return nil, err
		}
		list, ok := v.AsList()
		if !ok {
			return nil, fmt.Errorf("loop expression did not evaluate to a list")
		}
		return list, nil
	}
	raw := task.Loop
	if raw == nil {
		raw = task.WithItems
	}
	v := value.FromGo(raw)
	if list, ok := v.AsList(); ok {
		return list, nil
	}
	return []value.Value{v}, nil
}

// dispatch resolves delegate_to (if set), looks up the module, and runs
// it through the retry engine gated by its circuit breaker.
func (s *Scheduler) dispatch(ctx context.Context, task types.Task, hs *hostState) *types.Result {
	targetHost := hs.host
	if task.Delegate != "" {
		targetHost = types.Host{Name: task.Delegate, Address: task.Delegate}
	}

	module, err := s.opts.Modules.GetModule(task.Module.String())
	if err != nil {
		return errorResult(task, hs.host.Name, err)
	}

	conn, err := s.opts.Connect(ctx, targetHost)
	if err != nil {
		return &types.Result{
			Host: hs.host.Name, TaskName: task.Name, ModuleName: task.Module.String(),
			Success: false, Error: err, Message: fmt.Sprintf("connection failed: %v", err),
			StartTime: time.Now(), EndTime: time.Now(),
		}
	}

	args := expandArgs(task.Args, hs.ctx)
	if s.opts.CheckMode {
		args["_check_mode"] = true
	}
	if s.opts.DiffMode {
		args["_diff"] = true
	}
	breakerName := fmt.Sprintf("%s:%s", hs.host.Name, task.Module.String())
	cfg := retry.CircuitBreakerConfig{Name: breakerName, FailureThreshold: 5, ResetTimeout: 30 * time.Second, SuccessThreshold: 1}
	if task.CircuitBreaker != nil {
		cfg = retry.CircuitBreakerConfig{
			Name:             task.CircuitBreaker.Name,
			FailureThreshold: task.CircuitBreaker.FailureThreshold,
			ResetTimeout:     task.CircuitBreaker.ResetTimeout,
			SuccessThreshold: task.CircuitBreaker.SuccessThreshold,
		}
		if cfg.FailureThreshold == 0 {
			cfg.FailureThreshold = 5
		}
		if cfg.SuccessThreshold == 0 {
			cfg.SuccessThreshold = 1
		}
	}
	cb := s.opts.Circuits.GetOrCreate(cfg)

	strategy, maxAttempts := retryStrategy(task)

	res := retry.Do(cb, strategy, maxAttempts, func(attempt uint32) (*types.Result, error) {
		r, runErr := module.Run(ctx, conn, args)
		if runErr != nil {
			return r, runErr
		}
		if r == nil {
			r = &types.Result{Success: true}
		}

		if task.UntilExpr != nil || task.Until != nil {
			augmented := hs.ctx.Push(map[string]value.Value{"result": value.FromGo(resultToGo(r))})
			if ok, uerr := evalCondition(task.Until, task.UntilExpr, augmented); uerr == nil && ok {
				// until satisfied: stop retrying now, whatever r.Success says.
				return r, nil
			}
		}

		if !r.Success && !task.IgnoreErrors {
			if task.RetryWhenExpr != nil || task.RetryWhen != nil {
				augmented := hs.ctx.Push(map[string]value.Value{"result": value.FromGo(resultToGo(r))})
				if cont, cerr := evalCondition(task.RetryWhen, task.RetryWhenExpr, augmented); cerr == nil && !cont {
					// retry_when says don't keep trying: report this failure as final.
					return r, nil
				}
			}
			return r, fmt.Errorf("%s", r.Message)
		}
		return r, nil
	})

	if res.Ok {
		result := res.Value
		if result == nil {
			result = &types.Result{Success: true}
		}
		result.Host = hs.host.Name
		result.TaskName = task.Name
		result.ModuleName = task.Module.String()
		return result
	}
	if res.Blocked != nil {
		return &types.Result{
			Host: hs.host.Name, TaskName: task.Name, ModuleName: task.Module.String(),
			Success: false, Message: fmt.Sprintf("circuit %q open, retry in %s", breakerName, res.Blocked.TimeUntilRetry),
			StartTime: time.Now(), EndTime: time.Now(),
		}
	}
	return &types.Result{
		Host: hs.host.Name, TaskName: task.Name, ModuleName: task.Module.String(),
		Success: task.IgnoreErrors, Message: res.Failed.LastError,
		Error: fmt.Errorf("%s", res.Failed.LastError),
		StartTime: time.Now(), EndTime: time.Now(),
	}
}

// retryStrategy translates a task's RetryPolicy (or its simpler
// Retries/Delay count-and-sleep pair) into a DelayStrategy and attempt
// count for pkg/retry.Do.
func retryStrategy(task types.Task) (retry.DelayStrategy, uint32) {
	if task.RetryPolicy != nil {
		kind := retry.Fixed
		switch task.RetryPolicy.Strategy {
		case "exponential":
			kind = retry.Exponential
		case "linear":
			kind = retry.Linear
		}
		attempts := uint32(task.Retries + 1)
		if attempts <= 1 {
			attempts = 3
		}
		return retry.DelayStrategy{
			Kind: kind, Duration: task.RetryPolicy.Base, Base: task.RetryPolicy.Base,
			Max: task.RetryPolicy.Max, Jitter: task.RetryPolicy.Jitter, Increment: task.RetryPolicy.Increment,
		}, attempts
	}
	if task.Retries > 0 {
		return retry.DelayStrategy{Kind: retry.Fixed, Duration: time.Duration(task.Delay) * time.Second}, uint32(task.Retries + 1)
	}
	return retry.DelayStrategy{Kind: retry.Fixed, Duration: 0}, 1
}

// applyPostConditions evaluates changed_when/fail_when against a result
// augmented context and mutates result in place.
func (s *Scheduler) applyPostConditions(task types.Task, ctx *eval.Context, result *types.Result) {
	if result == nil {
		return
	}
	augmented := ctx.Push(map[string]value.Value{"result": value.FromGo(resultToGo(result))})

	if task.ChangedWhenExpr != nil || task.ChangedWhen != nil {
		changed, err := evalCondition(task.ChangedWhen, task.ChangedWhenExpr, augmented)
		if err == nil {
			result.Changed = changed
		}
	}
	if task.FailedWhenExpr != nil || task.FailedWhen != nil {
		failed, err := evalCondition(task.FailedWhen, task.FailedWhenExpr, augmented)
		if err == nil && failed {
			result.Success = false
			if result.Error == nil {
				result.Error = fmt.Errorf("task failed due to failed_when condition")
			}
		}
	}
}

func resultToGo(r *types.Result) map[string]interface{} {
	if r == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"changed": r.Changed,
		"failed":  !r.Success,
		"ok":      r.Success,
		"message": r.Message,
		"data":    r.Data,
	}
}

// finishTaskResult applies post-conditions, registers, notifies, records
// recap counts, checkpoints, and emits the terminal event for a
// single-shot (non-looped) task invocation.
func (s *Scheduler) finishTaskResult(ctx context.Context, task types.Task, hs *hostState, states map[string]*hostState, result *types.Result, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	s.applyPostConditions(task, hs.ctx, result)
	s.finalizeSingleResult(ctx, task, hs, result, true, recap, mgr, cp)

	if task.Register != "" {
		registered := resultToGo(result)
		hs.setVar(task.Register, registered)
		s.delegateRegisteredFacts(task, hs, states, registered)
	}
}

// delegateRegisteredFacts mirrors a task's registered result onto the
// delegate host's own variable layer when delegate_facts is set, so
// later tasks targeting the delegate (rather than the originating host)
// can see the same register value.
func (s *Scheduler) delegateRegisteredFacts(task types.Task, hs *hostState, states map[string]*hostState, registered interface{}) {
	if task.Delegate == "" || !task.DelegateFacts || states == nil {
		return
	}
	delegateHs, ok := states[task.Delegate]
	if !ok || delegateHs == hs {
		return
	}
	delegateHs.setVar(task.Register, registered)
}

// finalizeSingleResult records recap/handler/checkpoint side effects for
// one (task, host) invocation; shared by the looped and non-looped paths.
func (s *Scheduler) finalizeSingleResult(ctx context.Context, task types.Task, hs *hostState, result *types.Result, isLast bool, recap *Recap, mgr *handlers.Manager[types.Task], cp *checkpoint.State) {
	if result == nil {
		return
	}

	if !result.Success {
		if task.IgnoreErrors {
			recap.recordIgnored(hs.host.Name)
		} else {
			recap.recordFailed(hs.host.Name)
			hs.failed = true
			s.emit(types.Event{Type: types.EventHostFailed, Task: task.Name, Host: hs.host.Name, Result: result, Error: result.Error})
		}
	} else {
		recap.recordOK(hs.host.Name, result.Changed)
		s.emit(types.Event{Type: types.EventHostOk, Task: task.Name, Host: hs.host.Name, Result: result})
	}

	if result.Success && result.Changed && len(task.Notify) > 0 {
		mgr.Notify(hs.host.Name, task.Notify)
	}

	if cp != nil && isLast {
		cp.MarkCompleted(task.Name, hs.host.Name)
		cp.SetRegisteredResult(hs.host.Name, task.Name, resultToGo(result))
		_ = s.opts.Checkpoint.Save(cp)
	}
}

func errorResult(task types.Task, host string, err error) *types.Result {
	return &types.Result{
		Host: host, TaskName: task.Name, ModuleName: task.Module.String(),
		Success: false, Error: err, Message: err.Error(),
		StartTime: time.Now(), EndTime: time.Now(),
	}
}

// expandArgs resolves `${ ... }` interpolations in string argument values
// against the host's current variable context. Non-string and
// non-interpolated values pass through unchanged.
func expandArgs(args map[string]interface{}, ctx *eval.Context) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	ev := eval.NewEvaluator(ctx)
	for k, v := range args {
		out[k] = expandValue(v, ev)
	}
	return out
}

func expandValue(v interface{}, ev *eval.Evaluator) interface{} {
	switch t := v.(type) {
	case string:
		if !eval.HasInterpolation(t) {
			return t
		}
		parsed, err := eval.ParseTemplate(t)
		if err != nil {
			return t
		}
		result, err := ev.Evaluate(parsed)
		if err != nil {
			return t
		}
		return result.ToGo()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = expandValue(val, ev)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = expandValue(val, ev)
		}
		return out
	default:
		return v
	}
}
