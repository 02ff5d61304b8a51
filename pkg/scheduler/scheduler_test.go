package scheduler

import (
	"context"
	"fmt"
	"io"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nexus-automation/nexus/pkg/types"
)

type fakeConn struct{}

func (fakeConn) Connect(ctx context.Context, info types.ConnectionInfo) error { return nil }
func (fakeConn) Execute(ctx context.Context, command string, options types.ExecuteOptions) (*types.Result, error) {
	return &types.Result{Success: true}, nil
}
func (fakeConn) Copy(ctx context.Context, src io.Reader, dest string, mode int) error { return nil }
func (fakeConn) Fetch(ctx context.Context, src string) (io.Reader, error)             { return nil, nil }
func (fakeConn) Close() error                                                        { return nil }
func (fakeConn) IsConnected() bool                                                    { return true }

type fakeModule struct {
	name    string
	changed bool
	fail    bool
}

func (m *fakeModule) Name() string { return m.name }
func (m *fakeModule) Run(ctx context.Context, conn types.Connection, args map[string]interface{}) (*types.Result, error) {
	if m.fail {
		return &types.Result{Success: false, Message: "boom"}, fmt.Errorf("boom")
	}
	return &types.Result{Success: true, Changed: m.changed, Message: "ok"}, nil
}
func (m *fakeModule) Validate(args map[string]interface{}) error { return nil }
func (m *fakeModule) Documentation() types.ModuleDoc              { return types.ModuleDoc{Name: m.name} }

type fakeRegistry struct {
	modules map[string]types.Module
}

func (r *fakeRegistry) GetModule(name string) (types.Module, error) {
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("no such module %q", name)
	}
	return m, nil
}

type fakeInventory struct {
	hosts []types.Host
}

func (f *fakeInventory) GetHosts(pattern string) ([]types.Host, error) { return f.hosts, nil }
func (f *fakeInventory) GetHost(name string) (*types.Host, error)      { return nil, nil }
func (f *fakeInventory) GetGroup(name string) (*types.Group, error)    { return nil, nil }
func (f *fakeInventory) GetGroups() ([]types.Group, error)             { return nil, nil }
func (f *fakeInventory) AddHost(host types.Host) error                 { return nil }
func (f *fakeInventory) AddGroup(group types.Group) error              { return nil }
func (f *fakeInventory) GetHostVars(name string) (map[string]interface{}, error) {
	return nil, nil
}
func (f *fakeInventory) GetGroupVars(name string) (map[string]interface{}, error) {
	return nil, nil
}

func newTestScheduler(reg *fakeRegistry) *Scheduler {
	return New(Options{
		Modules: reg,
		Connect: func(ctx context.Context, host types.Host) (types.Connection, error) {
			return fakeConn{}, nil
		},
	})
}

func TestRunPlaybookRunsTaskOnAllHosts(t *testing.T) {
	reg := &fakeRegistry{modules: map[string]types.Module{
		"debug": &fakeModule{name: "debug", changed: true},
	}}
	s := newTestScheduler(reg)

	pb := &types.Playbook{Plays: []types.Play{{
		Name:  "demo",
		Hosts: "all",
		Tasks: []types.Task{{Name: "say hi", Module: types.TypeDebug, Args: map[string]interface{}{}}},
	}}}
	inv := &fakeInventory{hosts: []types.Host{{Name: "h1"}, {Name: "h2"}}}

	recaps, err := s.RunPlaybook(context.Background(), pb, inv)
	if err != nil {
		t.Fatalf("RunPlaybook: %v", err)
	}
	if len(recaps) != 1 {
		t.Fatalf("expected 1 recap, got %d", len(recaps))
	}
	counts := recaps[0].Counts()
	if len(counts) != 2 {
		t.Fatalf("expected 2 hosts in recap, got %d", len(counts))
	}
	for host, c := range counts {
		hc := c.(HostCounts)
		if hc.OK != 1 || hc.Changed != 1 {
			t.Errorf("host %s: expected OK=1 Changed=1, got %+v", host, hc)
		}
	}
}

func TestRunPlaybookRecordsFailure(t *testing.T) {
	reg := &fakeRegistry{modules: map[string]types.Module{
		"debug": &fakeModule{name: "debug", fail: true},
	}}
	s := newTestScheduler(reg)

	pb := &types.Playbook{Plays: []types.Play{{
		Name:  "demo",
		Hosts: "all",
		Tasks: []types.Task{{Name: "boom", Module: types.TypeDebug, Args: map[string]interface{}{}}},
	}}}
	inv := &fakeInventory{hosts: []types.Host{{Name: "h1"}}}

	recaps, err := s.RunPlaybook(context.Background(), pb, inv)
	if err != nil {
		t.Fatalf("RunPlaybook: %v", err)
	}
	if !recaps[0].AnyFailed() {
		t.Fatalf("expected recap to record a failure")
	}
}

func TestRunPlaybookSkipsWhenFalse(t *testing.T) {
	reg := &fakeRegistry{modules: map[string]types.Module{
		"debug": &fakeModule{name: "debug"},
	}}
	s := newTestScheduler(reg)

	pb := &types.Playbook{Plays: []types.Play{{
		Name:  "demo",
		Hosts: "all",
		Tasks: []types.Task{{Name: "skip me", Module: types.TypeDebug, Args: map[string]interface{}{}, When: false}},
	}}}
	inv := &fakeInventory{hosts: []types.Host{{Name: "h1"}}}

	recaps, err := s.RunPlaybook(context.Background(), pb, inv)
	if err != nil {
		t.Fatalf("RunPlaybook: %v", err)
	}
	counts := recaps[0].Counts()
	hc := counts["h1"].(HostCounts)
	if hc.Skipped != 1 || hc.OK != 0 {
		t.Errorf("expected task to be skipped, got %+v", hc)
	}
}

func TestFilterTagsExcludesSkipped(t *testing.T) {
	tasks := []types.Task{
		{Name: "a", Tags: []string{"web"}},
		{Name: "b", Tags: []string{"db"}},
	}
	out := filterTags(tasks, []string{"web"}, nil)
	if len(out) != 1 || out[0].Name != "a" {
		t.Fatalf("expected only task 'a', got %+v", out)
	}
}

func TestSplitHostsBySerialFixedCount(t *testing.T) {
	hosts := []types.Host{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	var spec types.SerialSpec
	mustUnmarshalSerial(t, &spec, "2")
	batches := splitHosts(hosts, spec.Resolve(len(hosts)))
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("unexpected batching: %+v", batches)
	}
}

func TestSplitHostsBySerialPercent(t *testing.T) {
	hosts := make([]types.Host, 10)
	for i := range hosts {
		hosts[i] = types.Host{Name: fmt.Sprintf("h%d", i)}
	}
	var spec types.SerialSpec
	mustUnmarshalSerial(t, &spec, `"50%"`)
	sizes := spec.Resolve(len(hosts))
	if len(sizes) != 2 || sizes[0] != 5 || sizes[1] != 5 {
		t.Fatalf("expected two batches of 5, got %v", sizes)
	}
}

func TestSplitHostsBySerialProgressiveList(t *testing.T) {
	hosts := make([]types.Host, 7)
	for i := range hosts {
		hosts[i] = types.Host{Name: fmt.Sprintf("h%d", i)}
	}
	var spec types.SerialSpec
	mustUnmarshalSerial(t, &spec, "[1, 2]")
	sizes := spec.Resolve(len(hosts))
	// last entry (2) repeats until hosts are exhausted: 1, 2, 2, 2
	if len(sizes) != 4 || sizes[0] != 1 || sizes[1] != 2 || sizes[2] != 2 || sizes[3] != 2 {
		t.Fatalf("unexpected progressive batching: %v", sizes)
	}
}

func mustUnmarshalSerial(t *testing.T, spec *types.SerialSpec, yamlSrc string) {
	t.Helper()
	if err := yaml.Unmarshal([]byte(yamlSrc), spec); err != nil {
		t.Fatalf("unmarshal serial %q: %v", yamlSrc, err)
	}
}
