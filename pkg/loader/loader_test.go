package loader

import (
	"os"
	"strings"
	"testing"
)

const samplePlaybook = `
- name: configure web
  hosts: webservers
  tasks:
    - name: ensure nginx running
      service:
        name: nginx
        state: started
      when: "${ env == 'prod' }"
      register: svc_result
`

func TestLoadParsesWhenExpression(t *testing.T) {
	l := New()
	pb, err := l.Load([]byte(samplePlaybook), "test.yml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pb.Plays) != 1 {
		t.Fatalf("expected 1 play, got %d", len(pb.Plays))
	}
	task := pb.Plays[0].Tasks[0]
	if task.WhenExpr == nil {
		t.Fatal("expected WhenExpr to be populated")
	}
}

func TestLoadRejectsUnknownModule(t *testing.T) {
	l := New()
	src := `
- name: broken play
  hosts: all
  tasks:
    - name: do a thing
      frobnicate:
        foo: bar
`
	_, err := l.Load([]byte(src), "broken.yml")
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), "unknown module") {
		t.Errorf("expected unknown-module message, got: %v", err)
	}
}

func TestLoadFileRequiresPasswordForVault(t *testing.T) {
	l := New()
	dir := t.TempDir()
	path := dir + "/vault.yml"
	if err := os.WriteFile(path, []byte("$NEXUS_VAULT;1.0;AES256\nYWJjZA==\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := l.LoadFile(path); err == nil {
		t.Fatal("expected error loading vault file without password")
	}
}
