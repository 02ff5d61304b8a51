package handlers

import "testing"

func TestRegisterRequiresName(t *testing.T) {
	m := NewManager[string]()
	if err := m.Register("", "", "payload"); err == nil {
		t.Error("expected error registering a handler with no name")
	}
}

func TestNotifyDeduplicatesPerHost(t *testing.T) {
	m := NewManager[string]()
	m.Register("restart nginx", "", "restart-task")

	m.Notify("web1", []string{"restart nginx", "restart nginx", "unknown handler"})
	m.Notify("web1", []string{"restart nginx"})

	entries := m.Flush()
	if len(entries) != 1 {
		t.Fatalf("expected 1 flush entry, got %d", len(entries))
	}
	if len(entries[0].Hosts) != 1 || entries[0].Hosts[0] != "web1" {
		t.Errorf("expected web1 notified exactly once, got %v", entries[0].Hosts)
	}
}

func TestFlushOrdersByDefinitionOrder(t *testing.T) {
	m := NewManager[string]()
	m.Register("second", "", "second-task")
	m.Register("first", "", "first-task")

	m.Notify("web1", []string{"first"})
	m.Notify("web1", []string{"second"})

	entries := m.Flush()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "second" || entries[1].Name != "first" {
		t.Errorf("expected definition order [second, first], got [%s, %s]", entries[0].Name, entries[1].Name)
	}
}

func TestFlushClearsPending(t *testing.T) {
	m := NewManager[string]()
	m.Register("h", "", "task")
	m.Notify("web1", []string{"h"})
	m.Flush()

	if m.HasPending() {
		t.Error("HasPending() should be false after Flush()")
	}
	if entries := m.Flush(); len(entries) != 0 {
		t.Errorf("second flush should be empty, got %v", entries)
	}
}

func TestNotifyViaListenTopic(t *testing.T) {
	m := NewManager[string]()
	m.Register("restart nginx", "webserver restarted", "restart-task")

	m.Notify("web1", []string{"webserver restarted"})
	entries := m.Flush()
	if len(entries) != 1 || entries[0].Name != "restart nginx" {
		t.Fatalf("expected listen topic to resolve to handler name, got %+v", entries)
	}
}

func TestNotifyOnlyNotifyingHosts(t *testing.T) {
	m := NewManager[string]()
	m.Register("h", "", "task")
	m.Notify("web1", []string{"h"})

	entries := m.Flush()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	for _, host := range entries[0].Hosts {
		if host == "web2" {
			t.Error("web2 never notified, should not appear")
		}
	}
}
