package scheduler

import "github.com/nexus-automation/nexus/pkg/types"

// filterTags retains tasks whose tag set intersects include (when include
// is non-empty) and is disjoint from skip; blocks propagate the filter to
// their children rather than being matched by their own (usually absent)
// tags.
func filterTags(tasks []types.Task, include, skip []string) []types.Task {
	if len(include) == 0 && len(skip) == 0 {
		return tasks
	}
	var out []types.Task
	for _, t := range tasks {
		if t.IsBlock() {
			filtered := t
			filtered.Block = filterTags(t.Block, include, skip)
			filtered.Rescue = filterTags(t.Rescue, include, skip)
			filtered.Always = filterTags(t.Always, include, skip)
			out = append(out, filtered)
			continue
		}
		if matchesTags(t.Tags, include, skip) {
			out = append(out, t)
		}
	}
	return out
}

func matchesTags(taskTags, include, skip []string) bool {
	for _, tag := range taskTags {
		if tag == "always" {
			return true
		}
	}
	if hasAny(taskTags, skip) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	if len(taskTags) == 0 {
		return hasAny(include, []string{"all"})
	}
	return hasAny(taskTags, include) || hasAny(include, []string{"all"})
}

func hasAny(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	for _, x := range a {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}
