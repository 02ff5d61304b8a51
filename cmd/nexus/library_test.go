package main

import (
	"bytes"
	"testing"

	"github.com/nexus-automation/nexus/pkg/library"
)

func TestLibrarySnippetsProduceTasks(t *testing.T) {
	ct := library.NewCommonTasks()
	for _, s := range librarySnippets() {
		tasks := s.fn(ct)
		if len(tasks) == 0 {
			t.Errorf("snippet %q produced no tasks", s.name)
		}
	}
}

func TestLibraryShowCmdUnknownSnippet(t *testing.T) {
	cmd := newLibraryShowCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"does-not-exist"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown snippet name")
	}
}

func TestLibraryShowCmdKnownSnippet(t *testing.T) {
	cmd := newLibraryShowCmd()
	cmd.SetArgs([]string{"ensure-file"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("show ensure-file failed: %v", err)
	}
}
