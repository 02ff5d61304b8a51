package modules

import (
	"context"
	"testing"

	"github.com/nexus-automation/nexus/pkg/connection"
	"github.com/nexus-automation/nexus/pkg/logging"
	ptesting "github.com/nexus-automation/nexus/pkg/testing"
	"github.com/nexus-automation/nexus/pkg/types"
)

// These exercise the command module through the shared module test
// harness (pkg/testing) rather than the ad hoc local MockConnection
// most other _test.go files in this package define, so the harness
// stays reachable from real module tests instead of only its own.
func TestCommandModuleRunsThroughSharedHarness(t *testing.T) {
	module := NewCommandModule()
	helper := ptesting.NewModuleTestHelper(t, module)
	helper.GetConnection().ExpectCommand("echo hello", &ptesting.CommandResponse{
		ExitCode: 0,
		Stdout:   "hello\n",
	})

	result := helper.Execute(map[string]interface{}{"cmd": "echo hello"}, false, false)

	helper.AssertSuccess(result)
	helper.AssertMessageContains(result, "hello")
	helper.GetConnection().AssertCommandCalled("echo hello")
}

func TestCommandModuleCreatesSkipsWhenTargetExists(t *testing.T) {
	module := NewCommandModule()
	helper := ptesting.NewModuleTestHelper(t, module)
	helper.GetConnection().ExpectCommand("test -e '/tmp/marker'", &ptesting.CommandResponse{ExitCode: 0})

	result := helper.Execute(map[string]interface{}{
		"cmd":     "touch /tmp/marker",
		"creates": "/tmp/marker",
	}, false, false)

	helper.AssertSuccess(result)
	helper.AssertNotChanged(result)
	helper.GetConnection().AssertCommandNotCalled("touch /tmp/marker")
}

// A real local connection implements types.StreamingConnection, so attaching
// a logger routes the run through executeLogged instead of plain Execute;
// this checks that path actually records the command's output.
func TestCommandModuleStreamsThroughLogger(t *testing.T) {
	module := NewCommandModule()

	logger := logging.NewStreamLogger("command-test", "test-session")
	mem := logger.AddMemoryOutput(50)
	module.SetLogger(logger)

	conn := connection.NewLocalConnection()
	if err := conn.Connect(context.Background(), types.ConnectionInfo{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	result, err := module.Run(context.Background(), conn, map[string]interface{}{
		"cmd": "echo from-logger",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %+v", result)
	}

	logger.Flush()
	entries := mem.GetEntries()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry from the streamed command, got none")
	}
}
