package inventory

import (
	"testing"

	"github.com/nexus-automation/nexus/pkg/types"
)

func newTestInventoryForPatterns(t *testing.T) *StaticInventory {
	t.Helper()
	inv := NewStaticInventory()
	hosts := []string{"web1", "web2", "db1", "db2"}
	for _, h := range hosts {
		if err := inv.AddHost(types.Host{Name: h}); err != nil {
			t.Fatalf("AddHost(%s) failed: %v", h, err)
		}
	}
	if err := inv.AddGroup(types.Group{Name: "webservers", Hosts: []string{"web1", "web2"}}); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	if err := inv.AddGroup(types.Group{Name: "dbservers", Hosts: []string{"db1", "db2"}}); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	if err := inv.AddGroup(types.Group{Name: "staging", Hosts: []string{"web1", "db1"}}); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	return inv
}

func hostNames(hosts []types.Host) map[string]bool {
	out := map[string]bool{}
	for _, h := range hosts {
		out[h.Name] = true
	}
	return out
}

func TestResolvePatternUnion(t *testing.T) {
	inv := newTestInventoryForPatterns(t)
	hosts, err := inv.ResolvePattern("webservers:dbservers")
	if err != nil {
		t.Fatalf("ResolvePattern failed: %v", err)
	}
	names := hostNames(hosts)
	for _, want := range []string{"web1", "web2", "db1", "db2"} {
		if !names[want] {
			t.Errorf("expected %s in union result, got %v", want, names)
		}
	}
}

func TestResolvePatternIntersection(t *testing.T) {
	inv := newTestInventoryForPatterns(t)
	hosts, err := inv.ResolvePattern("webservers:&staging")
	if err != nil {
		t.Fatalf("ResolvePattern failed: %v", err)
	}
	names := hostNames(hosts)
	if len(names) != 1 || !names["web1"] {
		t.Errorf("expected only web1, got %v", names)
	}
}

func TestResolvePatternExclusion(t *testing.T) {
	inv := newTestInventoryForPatterns(t)
	hosts, err := inv.ResolvePattern("webservers:!staging")
	if err != nil {
		t.Fatalf("ResolvePattern failed: %v", err)
	}
	names := hostNames(hosts)
	if len(names) != 1 || !names["web2"] {
		t.Errorf("expected only web2, got %v", names)
	}
}
