// Package loader reads playbook YAML from disk (optionally vault-wrapped),
// validates module names against the known catalogue, and populates the
// parsed-expression fields on each Task so the scheduler never has to touch
// raw YAML scalars again.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/eval"
	"github.com/nexus-automation/nexus/pkg/types"
	"github.com/nexus-automation/nexus/pkg/vault"
)

// recognizedTaskKeys are the task-level keys consumed by the scheduler
// itself; everything else in a task map is assumed to be the module call
// (module name plus its arguments).
var recognizedTaskKeys = map[string]struct{}{
	"name": {}, "when": {}, "register": {}, "fail_when": {}, "failed_when": {},
	"changed_when": {}, "notify": {}, "loop": {}, "loop_var": {}, "sudo": {},
	"as": {}, "tags": {}, "retry": {}, "until": {}, "retries": {}, "delay": {},
	"async": {}, "poll": {}, "timeout": {}, "throttle": {}, "delegate_to": {},
	"delegate_facts": {}, "block": {}, "rescue": {}, "always": {},
	"import_tasks": {}, "include_tasks": {}, "vars": {}, "listen": {},
	"ignore_errors": {}, "run_once": {}, "with_items": {}, "loop_control": {},
	"environment": {}, "check_mode": {}, "diff": {}, "retry_policy": {},
	"circuit_breaker": {},
}

// knownModules is the catalogue an unrecognized module name is checked
// against, both for validation and for nearest-match suggestion.
var knownModules = []string{
	"command", "shell", "copy", "template", "file", "service", "user", "group",
	"yum", "apt", "package", "systemd", "cron", "mount", "lineinfile", "replace",
	"blockinfile", "fetch", "synchronize", "unarchive", "git", "pip", "debug",
	"setup", "set_fact", "include_tasks", "import_tasks", "include_vars",
	"import_role", "include_role", "pause", "wait_for", "uri", "get_url",
}

// Loader parses playbooks from disk, transparently decrypting
// vault-wrapped files and resolving expression fields.
type Loader struct {
	// VaultPassword decrypts a vault-wrapped playbook file when non-empty.
	VaultPassword string
}

// New returns a Loader with no vault password configured.
func New() *Loader {
	return &Loader{}
}

// LoadFile reads path, decrypting it first if it is vault-wrapped, parses
// it as a Playbook, and resolves every task's expression fields.
func (l *Loader) LoadFile(path string) (*types.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to read playbook file", err)
	}

	if vault.IsVaultFile(data) {
		if l.VaultPassword == "" {
			return nil, types.NewPlaybookError(path, "", "", "playbook is vault-encrypted but no vault password was supplied", nil)
		}
		v := vault.New(l.VaultPassword)
		plain, err := v.DecryptFile(data)
		if err != nil {
			return nil, types.NewPlaybookError(path, "", "", "vault decryption failed", err)
		}
		data = plain
	}

	return l.Load(data, path)
}

// Load parses raw (already-decrypted) YAML bytes into a Playbook and
// resolves every task's expression fields in place.
func (l *Loader) Load(data []byte, source string) (*types.Playbook, error) {
	var rawPlays []map[string]interface{}
	if err := yaml.Unmarshal(data, &rawPlays); err != nil {
		var single map[string]interface{}
		if err2 := yaml.Unmarshal(data, &single); err2 != nil {
			return nil, types.NewPlaybookError(source, "", "", "failed to parse YAML", err)
		}
		rawPlays = []map[string]interface{}{single}
	}

	var playbook types.Playbook
	for i, rawPlay := range rawPlays {
		buf, err := yaml.Marshal(rawPlay)
		if err != nil {
			return nil, types.NewPlaybookError(source, "", "", "failed to re-encode play", err)
		}
		var play types.Play
		if err := yaml.Unmarshal(buf, &play); err != nil {
			return nil, types.NewPlaybookError(source, "", fmt.Sprintf("play %d", i), "failed to parse play", err)
		}

		if err := l.resolveTasks(play.PreTasks, source, play.Name); err != nil {
			return nil, err
		}
		if err := l.resolveTasks(play.Tasks, source, play.Name); err != nil {
			return nil, err
		}
		if err := l.resolveTasks(play.PostTasks, source, play.Name); err != nil {
			return nil, err
		}
		if err := l.resolveTasks(play.Handlers, source, play.Name); err != nil {
			return nil, err
		}

		playbook.Plays = append(playbook.Plays, play)
	}

	if len(playbook.Plays) == 0 {
		return nil, types.NewPlaybookError(source, "", "", "playbook must contain at least one play", nil)
	}

	return &playbook, nil
}

// resolveTasks walks a task list (recursing into block/rescue/always),
// validates the module name, and parses every expression-bearing field.
func (l *Loader) resolveTasks(tasks []types.Task, source, playName string) error {
	for i := range tasks {
		t := &tasks[i]

		if t.IsBlock() {
			if err := l.resolveTasks(t.Block, source, playName); err != nil {
				return err
			}
			if err := l.resolveTasks(t.Rescue, source, playName); err != nil {
				return err
			}
			if err := l.resolveTasks(t.Always, source, playName); err != nil {
				return err
			}
			continue
		}

		if err := validateModule(string(t.Module), t.Name, playName); err != nil {
			return err
		}

		var err error
		if t.WhenExpr, err = parseExprField(t.When); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid when expression", err)
		}
		if t.FailedWhenExpr, err = parseExprField(t.FailedWhen); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid failed_when expression", err)
		}
		if t.ChangedWhenExpr, err = parseExprField(t.ChangedWhen); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid changed_when expression", err)
		}
		if t.UntilExpr, err = parseExprField(t.Until); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid until expression", err)
		}
		if t.RetryWhenExpr, err = parseExprField(t.RetryWhen); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid retry_when expression", err)
		}
		if t.LoopExpr, err = parseExprField(t.Loop); err != nil {
			return types.NewPlaybookError(source, "", t.Name, "invalid loop expression", err)
		}

		for k, v := range t.Args {
			if s, ok := v.(string); ok && eval.HasInterpolation(s) {
				parsed, err := eval.ParseTemplate(s)
				if err != nil {
					return types.NewPlaybookError(source, "", t.Name, fmt.Sprintf("invalid expression in arg %q", k), err)
				}
				_ = parsed // module args keep the raw string; scheduler re-parses at dispatch time via pkg/eval
			}
		}
	}
	return nil
}

// parseExprField turns a raw YAML scalar into an InterpolatedString. Only
// strings containing `${ ... }` are scanned; non-string values (bool,
// list, nil) and plain strings are left unparsed, since the scheduler
// evaluates those directly without going through pkg/eval.
func parseExprField(raw interface{}) (*ast.InterpolatedString, error) {
	s, ok := raw.(string)
	if !ok || !eval.HasInterpolation(s) {
		return nil, nil
	}
	return eval.ParseTemplate(s)
}

// validateModule checks that module is non-empty and in the known module
// catalogue. An unknown name yields an error that suggests the closest
// known name when one is near. Block tasks never reach it: resolveTasks
// recurses into their sections instead.
func validateModule(module, taskName, playName string) error {
	if module == "" {
		return types.NewPlaybookError("", "", taskName, fmt.Sprintf("task %q in play %q has no recognizable module", taskName, playName), nil)
	}
	for _, m := range knownModules {
		if m == module {
			return nil
		}
	}
	suggestion := nearestModule(module)
	msg := fmt.Sprintf("task %q in play %q uses unknown module %q", taskName, playName, module)
	if suggestion != "" {
		msg += fmt.Sprintf(", did you mean %q?", suggestion)
	}
	return types.NewPlaybookError("", "", taskName, msg, nil)
}

// nearestModule returns the known module name with the smallest Levenshtein
// distance to module, or "" if none is within a reasonable edit distance.
func nearestModule(module string) string {
	type candidate struct {
		name string
		dist int
	}
	var best candidate
	best.dist = -1
	for _, m := range knownModules {
		d := levenshtein(module, m)
		if best.dist == -1 || d < best.dist {
			best = candidate{name: m, dist: d}
		}
	}
	if best.dist >= 0 && best.dist <= 3 {
		return best.name
	}
	return ""
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// ResolveRoleSearchPaths returns role lookup directories in priority
// order: adjacent to the playbook, the user's config directory, the
// system directory.
func ResolveRoleSearchPaths(playbookPath string) []string {
	paths := []string{filepath.Join(filepath.Dir(playbookPath), "roles")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nexus", "roles"))
	}
	paths = append(paths, "/etc/nexus/roles")
	return paths
}

