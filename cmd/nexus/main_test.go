package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/nexus-automation/nexus/pkg/types"
	"github.com/nexus-automation/nexus/pkg/vault"
)

func TestHostConnectionInfoDefaultsToSSH(t *testing.T) {
	h := types.Host{Name: "web1", Address: "10.0.0.1", Port: 22, User: "deploy"}
	info := hostConnectionInfo(h, "")
	if info.Type != "ssh" {
		t.Errorf("expected default type ssh, got %q", info.Type)
	}
	if info.Host != "10.0.0.1" || info.User != "deploy" {
		t.Errorf("unexpected connection info: %+v", info)
	}
}

func TestHostConnectionInfoHonorsAnsibleConnectionVar(t *testing.T) {
	h := types.Host{
		Name:      "win1",
		Address:   "10.0.0.2",
		Variables: map[string]interface{}{"ansible_connection": "winrm"},
	}
	info := hostConnectionInfo(h, "")
	if info.Type != "winrm" {
		t.Errorf("expected winrm, got %q", info.Type)
	}
}

func TestHostConnectionInfoDecryptsInlineVaultPassword(t *testing.T) {
	v := vault.New("s3cret")
	encrypted, err := vault.NewVaultString(v, "hunter2").Encrypt()
	if err != nil {
		t.Fatalf("encrypting inline vault string: %v", err)
	}

	h := types.Host{Name: "db1", Address: "10.0.0.3", Password: encrypted}
	info := hostConnectionInfo(h, "s3cret")
	if info.Password != "hunter2" {
		t.Errorf("expected decrypted password %q, got %q", "hunter2", info.Password)
	}
}

func TestHostConnectionInfoLeavesPlainPasswordAlone(t *testing.T) {
	h := types.Host{Name: "db1", Address: "10.0.0.3", Password: "hunter2"}
	info := hostConnectionInfo(h, "s3cret")
	if info.Password != "hunter2" {
		t.Errorf("expected plain password unchanged, got %q", info.Password)
	}
}

func TestChainCallbacksInvokesAll(t *testing.T) {
	var calls []string
	cb := chainCallbacks(
		func(ev types.Event) { calls = append(calls, "a") },
		nil,
		func(ev types.Event) { calls = append(calls, "b") },
	)
	cb(types.Event{Type: types.EventHostOk})
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected both callbacks invoked in order, got %v", calls)
	}
}

func TestIndentPrefixesEveryLine(t *testing.T) {
	got := indent("a\nb\nc", "  ")
	want := "  a\n  b\n  c"
	if got != want {
		t.Errorf("indent mismatch: got %q want %q", got, want)
	}
}

type fakeLimitInventory struct {
	hosts []types.Host
}

func (f *fakeLimitInventory) GetHosts(pattern string) ([]types.Host, error) {
	if pattern == "web" {
		var out []types.Host
		for _, h := range f.hosts {
			if h.Name == "web1" || h.Name == "web2" {
				out = append(out, h)
			}
		}
		return out, nil
	}
	return f.hosts, nil
}
func (f *fakeLimitInventory) GetHost(name string) (*types.Host, error)   { return nil, nil }
func (f *fakeLimitInventory) GetGroup(name string) (*types.Group, error) { return nil, nil }
func (f *fakeLimitInventory) GetGroups() ([]types.Group, error)          { return nil, nil }
func (f *fakeLimitInventory) AddHost(host types.Host) error              { return nil }
func (f *fakeLimitInventory) AddGroup(group types.Group) error           { return nil }
func (f *fakeLimitInventory) GetHostVars(name string) (map[string]interface{}, error) {
	return nil, nil
}
func (f *fakeLimitInventory) GetGroupVars(name string) (map[string]interface{}, error) {
	return nil, nil
}

func TestLimitedInventoryIntersectsLimitPattern(t *testing.T) {
	base := &fakeLimitInventory{hosts: []types.Host{
		{Name: "web1"}, {Name: "web2"}, {Name: "db1"},
	}}
	lim := limitedInventory{Inventory: base, pattern: "web"}

	hosts, err := lim.GetHosts("all")
	if err != nil {
		t.Fatalf("GetHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts within the limit pattern, got %d: %+v", len(hosts), hosts)
	}
	for _, h := range hosts {
		if h.Name == "db1" {
			t.Errorf("db1 should have been excluded by the limit pattern")
		}
	}
}

func TestRunPlaybookCmdRequiresInventory(t *testing.T) {
	f := &runFlags{}
	err := runPlaybookCmd(&cobra.Command{}, "playbook.yml", f, false)
	if err == nil {
		t.Fatal("expected an error when --inventory is missing")
	}
}
