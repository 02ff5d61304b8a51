package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nexus-automation/nexus/pkg/library"
	"github.com/nexus-automation/nexus/pkg/types"
)

// librarySnippet names one of pkg/library's task-builder methods so it
// can be listed and rendered without requiring every parameter it
// accepts; each uses reasonable example arguments.
type librarySnippet struct {
	name string
	desc string
	fn   func(ct *library.CommonTasks) []types.Task
}

func librarySnippets() []librarySnippet {
	return []librarySnippet{
		{"ensure-file", "create a file with fixed content and ownership",
			func(ct *library.CommonTasks) []types.Task {
				return ct.EnsureFile("/etc/motd", "Managed by nexus\n", "root", "root", "0644")
			}},
		{"manage-service", "enable and start a systemd service",
			func(ct *library.CommonTasks) []types.Task {
				return ct.ManageService("nginx", "started", true)
			}},
		{"manage-packages", "install packages via the distro package manager",
			func(ct *library.CommonTasks) []types.Task {
				return ct.ManagePackages([]string{"curl", "git"}, "present")
			}},
		{"configure-firewall", "open a port through the host firewall",
			func(ct *library.CommonTasks) []types.Task {
				return ct.ConfigureFirewall(8080, "tcp", "allow")
			}},
		{"setup-ssh-security", "harden sshd_config defaults",
			func(ct *library.CommonTasks) []types.Task {
				return ct.SetupSSHSecurity(false, false)
			}},
		{"git-clone-or-update", "clone a repo or pull if already present",
			func(ct *library.CommonTasks) []types.Task {
				return ct.GitCloneOrUpdate("https://example.com/app.git", "/opt/app", "main")
			}},
		{"docker-container", "run a container with published ports",
			func(ct *library.CommonTasks) []types.Task {
				return ct.DockerContainer("web", "nginx:latest", []string{"80:80"}, nil, nil)
			}},
		{"cron-job", "install a crontab entry",
			func(ct *library.CommonTasks) []types.Task {
				return ct.CronJob("nightly-backup", "root", "/usr/local/bin/backup.sh", "0", "2", "*", "*", "*")
			}},
		{"create-user-with-ssh-key", "create a sudo-enabled user with an authorized key",
			func(ct *library.CommonTasks) []types.Task {
				return ct.CreateUserWithSSHKey("deploy", []string{"sudo"}, "ssh-ed25519 AAAA...", true)
			}},
	}
}

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List and preview built-in task snippets",
	}
	cmd.AddCommand(newLibraryListCmd(), newLibraryShowCmd())
	return cmd
}

func newLibraryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available built-in task snippets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range librarySnippets() {
				fmt.Printf("%-28s %s\n", s.name, s.desc)
			}
			return nil
		},
	}
}

func newLibraryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Render the tasks a built-in snippet generates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range librarySnippets() {
				if s.name == args[0] {
					tasks := s.fn(library.NewCommonTasks())
					out, err := yaml.Marshal(tasks)
					if err != nil {
						return fmt.Errorf("rendering snippet %q: %w", args[0], err)
					}
					fmt.Print(string(out))
					return nil
				}
			}
			return fmt.Errorf("unknown snippet %q (see `nexus library list`)", args[0])
		},
	}
}
