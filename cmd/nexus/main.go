// Command nexus drives playbooks against remote hosts: parsing, dry-run
// planning, live execution, inventory inspection, and vault/checkpoint
// management, all as cobra subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexus-automation/nexus/pkg/callback"
	"github.com/nexus-automation/nexus/pkg/checkpoint"
	"github.com/nexus-automation/nexus/pkg/config"
	"github.com/nexus-automation/nexus/pkg/connection"
	"github.com/nexus-automation/nexus/pkg/eventbus"
	"github.com/nexus-automation/nexus/pkg/inventory"
	"github.com/nexus-automation/nexus/pkg/loader"
	"github.com/nexus-automation/nexus/pkg/logging"
	"github.com/nexus-automation/nexus/pkg/metrics"
	"github.com/nexus-automation/nexus/pkg/modules"
	"github.com/nexus-automation/nexus/pkg/nexuslog"
	"github.com/nexus-automation/nexus/pkg/plan"
	"github.com/nexus-automation/nexus/pkg/scheduler"
	"github.com/nexus-automation/nexus/pkg/types"
	"github.com/nexus-automation/nexus/pkg/vault"
)

var version = "dev"

type runFlags struct {
	inventoryFile  string
	check          bool
	diff           bool
	tags           []string
	skipTags       []string
	limit          string
	forks          int
	checkpointPath string
	resume         bool
	vaultPassword  string
	logLevel       string
	streamAddr     string
	callbackName   string
	configPath     string
	streamTaskLog  bool
}

func main() {
	root := &cobra.Command{
		Use:     "nexus",
		Short:   "Declarative infrastructure automation over SSH/WinRM",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newInventoryCmd(),
		newParseCmd(),
		newPlanCmd(),
		newVaultCmd(),
		newCheckpointCmd(),
		newConvertCmd(),
		newLibraryCmd(),
		newDoctorCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.inventoryFile, "inventory", "i", "", "inventory file (required)")
	cmd.Flags().BoolVar(&f.check, "check", false, "dry run: predict changes without applying them")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "show before/after diffs where modules support it")
	cmd.Flags().StringSliceVarP(&f.tags, "tags", "t", nil, "only run tasks with these tags")
	cmd.Flags().StringSliceVar(&f.skipTags, "skip-tags", nil, "skip tasks with these tags")
	cmd.Flags().StringVar(&f.limit, "limit", "", "restrict to a host pattern subset of the resolved inventory")
	cmd.Flags().IntVar(&f.forks, "forks", 10, "maximum hosts running concurrently")
	cmd.Flags().StringVar(&f.checkpointPath, "checkpoint", "", "checkpoint file path; enables checkpointing when set")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "resume from the checkpoint at --checkpoint if present")
	cmd.Flags().StringVar(&f.vaultPassword, "vault-password", "", "password for vault-encrypted playbook/inventory files")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.streamAddr, "stream-addr", "", "if set, serve run events over websocket at this address (e.g. :8787)")
	cmd.Flags().StringVar(&f.callbackName, "callback", "", "extra run callback: json (emit a JSON summary to stdout) or profile_tasks (print per-task timings)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file providing forks and vault_password defaults; falls back to ./nexus.yaml and friends when unset")
	cmd.Flags().BoolVar(&f.streamTaskLog, "stream-task-output", false, "log each command/shell task's stdout/stderr line by line as it runs")
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run PLAYBOOK",
		Short: "Execute a playbook against the resolved inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaybookCmd(cmd, args[0], f, false)
		},
	}
	registerRunFlags(cmd, f)
	return cmd
}

func newPlanCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "plan PLAYBOOK",
		Short: "Dry-run a playbook and report predicted changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaybookCmd(cmd, args[0], f, true)
		},
	}
	registerRunFlags(cmd, f)
	return cmd
}

func runPlaybookCmd(cmd *cobra.Command, playbookPath string, f *runFlags, dryRun bool) error {
	ctx := cmd.Context()
	if f.inventoryFile == "" {
		return fmt.Errorf("setup error: --inventory is required")
	}

	cfg, cfgLoaded := config.NewConfig(), false
	switch {
	case f.configPath != "":
		if err := cfg.Load(f.configPath); err != nil {
			return fmt.Errorf("setup error: loading --config: %w", err)
		}
		cfgLoaded = true
	default:
		for _, p := range config.GetConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				if err := cfg.Load(p); err == nil {
					cfgLoaded = true
				}
				break
			}
		}
	}
	if cfgLoaded {
		if !cmd.Flags().Changed("forks") {
			if forks := cfg.GetInt("forks"); forks > 0 {
				f.forks = forks
			}
		}
		if !cmd.Flags().Changed("vault-password") && cfg.GetString("vault_password") != "" {
			f.vaultPassword = cfg.GetString("vault_password")
		}
	}

	ld := loader.New()
	ld.VaultPassword = f.vaultPassword
	pb, err := ld.LoadFile(playbookPath)
	if err != nil {
		return fmt.Errorf("setup error: %w", err)
	}

	inv, err := loadInventory(f.inventoryFile, f.vaultPassword)
	if err != nil {
		return fmt.Errorf("setup error: %w", err)
	}

	logger := nexuslog.New(nexuslog.Options{Level: f.logLevel})
	metricsReg := metrics.NewRegistry()

	var cpStore *checkpoint.Store
	var playbookContent []byte
	if f.checkpointPath != "" {
		if !f.resume {
			if err := os.Remove(f.checkpointPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("setup error: clearing checkpoint: %w", err)
			}
		}
		playbookContent, _ = os.ReadFile(playbookPath)
		cpStore, err = checkpoint.Open(f.checkpointPath)
		if err != nil {
			return fmt.Errorf("setup error: opening checkpoint: %w", err)
		}
		defer cpStore.Close()
	}

	moduleRegistry := modules.NewModuleRegistry()
	connMgr := connection.NewConnectionManager()

	if f.streamTaskLog {
		taskLogger := logging.NewStreamLogger("nexus", playbookPath)
		taskLogger.AddConsoleOutput("text", true)
		defer taskLogger.Close()
		if cmdModule, err := moduleRegistry.GetModule("command"); err == nil {
			if cm, ok := cmdModule.(*modules.CommandModule); ok {
				cm.SetLogger(taskLogger)
			}
		}
	}

	var callbackCB types.EventCallback
	switch f.callbackName {
	case "":
	case "json", "profile_tasks":
		cbMgr := callback.NewCallbackManager()
		if f.callbackName == "json" {
			cbMgr.Register(callback.NewJSONCallback())
		} else {
			cbMgr.Register(callback.NewProfileTasksCallback())
		}
		callbackCB = callback.NewEventAdapter(cbMgr).Callback()
	default:
		return fmt.Errorf("setup error: unknown --callback %q", f.callbackName)
	}

	bus := eventbus.New()
	if f.streamAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/events", bus.ServeRemote())
		srv := &http.Server{Addr: f.streamAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "stream server error: %v\n", err)
			}
		}()
		defer srv.Shutdown(ctx)
	}

	sched := scheduler.New(scheduler.Options{
		Modules: moduleRegistry,
		Connect: func(ctx context.Context, host types.Host) (types.Connection, error) {
			return connMgr.GetConnection(ctx, hostConnectionInfo(host, f.vaultPassword))
		},
		Checkpoint:       cpStore,
		EventCallback:    chainCallbacks(logger.EventCallback(), metricsReg.EventCallback(), bus.Callback(), callbackCB),
		IncludeTags:      f.tags,
		SkipTags:         f.skipTags,
		MaxParallelHosts: f.forks,
		CheckMode:        f.check || dryRun,
		DiffMode:         f.diff,
		PlaybookPath:     playbookPath,
		InventoryPath:    f.inventoryFile,
		PlaybookContent:  playbookContent,
	})

	if f.limit != "" {
		inv = limitedInventory{Inventory: inv, pattern: f.limit}
	}

	if dryRun {
		p, err := plan.Run(ctx, sched, pb, inv)
		if err != nil {
			return fmt.Errorf("runtime error: %w", err)
		}
		printPlan(p)
		if p.AnyChanges() {
			fmt.Println("\nRun `nexus run` to apply these changes.")
		}
		return nil
	}

	recaps, err := sched.RunPlaybook(ctx, pb, inv)
	if err != nil {
		printRecaps(recaps)
		return fmt.Errorf("runtime error: %w", err)
	}
	printRecaps(recaps)

	for _, r := range recaps {
		if r.AnyFailed() {
			os.Exit(2)
		}
	}
	return nil
}

func printPlan(p *plan.Plan) {
	fmt.Println("PLAN ***************************************************************")
	for _, hp := range p.Hosts() {
		fmt.Printf("\n%s\n", hp.Host)
		for _, t := range hp.Tasks {
			switch {
			case t.Failed:
				fmt.Printf("  failed: %s: %s\n", t.Task, t.Reason)
			case t.WillChange:
				fmt.Printf("  would change: %s: %s\n", t.Task, t.Reason)
			default:
				fmt.Printf("  ok (no change): %s\n", t.Task)
			}
			if t.Diff != "" {
				fmt.Println(indent(t.Diff, "    "))
			}
		}
	}
}

func printRecaps(recaps []*scheduler.Recap) {
	fmt.Println("\nPLAY RECAP *********************************************************")
	for _, r := range recaps {
		for host, c := range r.Counts() {
			hc := c.(scheduler.HostCounts)
			fmt.Printf("%-24s : ok=%-3d changed=%-3d unreachable=%-3d failed=%-3d skipped=%-3d\n",
				host, hc.OK, hc.Changed, hc.Unreachable, hc.Failed, hc.Skipped)
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func newValidateCmd() *cobra.Command {
	var vaultPassword string
	cmd := &cobra.Command{
		Use:   "validate PLAYBOOK",
		Short: "Parse and type-check a playbook without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ld := loader.New()
			ld.VaultPassword = vaultPassword
			if _, err := ld.LoadFile(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s: OK\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultPassword, "vault-password", "", "password for a vault-encrypted playbook")
	return cmd
}

func newInventoryCmd() *cobra.Command {
	var inventoryFile string
	cmd := &cobra.Command{
		Use:   "inventory PATTERN",
		Short: "List hosts matching a pattern in the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inventoryFile == "" {
				return fmt.Errorf("setup error: -i/--inventory is required")
			}
			inv, err := loadInventory(inventoryFile, "")
			if err != nil {
				return fmt.Errorf("setup error: %w", err)
			}
			hosts, err := inv.ResolvePattern(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			for _, h := range hosts {
				fmt.Println(h.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inventoryFile, "inventory", "i", "", "inventory file")
	return cmd
}

func newParseCmd() *cobra.Command {
	var format string
	var vaultPassword string
	cmd := &cobra.Command{
		Use:   "parse PLAYBOOK",
		Short: "Pretty-print the parsed playbook AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ld := loader.New()
			ld.VaultPassword = vaultPassword
			pb, err := ld.LoadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
				os.Exit(1)
			}
			switch format {
			case "json", "":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(pb)
			default:
				return fmt.Errorf("unsupported --format %q (use json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json")
	cmd.Flags().StringVar(&vaultPassword, "vault-password", "", "password for a vault-encrypted playbook")
	return cmd
}

func newVaultCmd() *cobra.Command {
	var password string
	root := &cobra.Command{Use: "vault", Short: "Encrypt, decrypt, or view a vault-protected file"}
	root.PersistentFlags().StringVar(&password, "vault-password", "", "vault password (required)")

	newManager := func() (*vault.Manager, error) {
		if password == "" {
			return nil, fmt.Errorf("--vault-password is required")
		}
		m := vault.NewManager()
		m.AddVault(vault.DefaultVaultIDLabel, password)
		return m, nil
	}

	encrypt := &cobra.Command{
		Use:   "encrypt FILE",
		Short: "Encrypt a file in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			return m.EncryptFile(args[0], vault.DefaultVaultIDLabel)
		},
	}
	decrypt := &cobra.Command{
		Use:   "decrypt FILE",
		Short: "Decrypt a file in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			return m.DecryptToFile(args[0], args[0])
		},
	}
	view := &cobra.Command{
		Use:   "view FILE",
		Short: "Print a vault file's decrypted contents without modifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			return m.View(args[0], os.Stdout)
		},
	}

	root.AddCommand(encrypt, decrypt, view)
	return root
}

func newCheckpointCmd() *cobra.Command {
	root := &cobra.Command{Use: "checkpoint", Short: "Inspect or clear checkpoint files"}

	list := &cobra.Command{
		Use:   "list PATH",
		Short: "Show a checkpoint's completed task-host pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := checkpoint.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			state, err := store.Load()
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Println("no checkpoint recorded")
				return nil
			}
			for _, c := range state.Completed {
				fmt.Printf("%s @ %s\n", c.Task, c.Host)
			}
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "show PATH",
		Short: "Print a checkpoint's full state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := checkpoint.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			state, err := store.Load()
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Println("null")
				return nil
			}
			data, err := state.Marshal()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	clean := &cobra.Command{
		Use:   "clean PATH",
		Short: "Remove a checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(args[0]); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		},
	}

	root.AddCommand(list, show, clean)
	return root
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert SOURCE",
		Short: "Convert a foreign playbook format (delegates to an external tool)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("convert is out of scope for the core engine; invoke the dedicated conversion tool")
		},
	}
}

func loadInventory(path, vaultPassword string) (*inventory.StaticInventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	if vault.IsVaultFile(data) {
		if vaultPassword == "" {
			return nil, fmt.Errorf("inventory file is vault-encrypted but no --vault-password was given")
		}
		data, err = vault.New(vaultPassword).DecryptFile(data)
		if err != nil {
			return nil, fmt.Errorf("vault error: %w", err)
		}
	}
	inv, err := inventory.NewFromYAML(data)
	if err != nil {
		return nil, err
	}
	if vaultPassword != "" {
		mgr := vault.NewManager()
		mgr.AddVault(vault.DefaultVaultIDLabel, vaultPassword)
		inv.SetVaultManager(mgr)
	}
	return inv, nil
}

func hostConnectionInfo(host types.Host, vaultPassword string) types.ConnectionInfo {
	connType := "ssh"
	if t, ok := host.Variables["ansible_connection"].(string); ok && t != "" {
		connType = t
	}
	password := host.Password
	if vaultPassword != "" && vault.IsVaultString(password) {
		v := vault.New(vaultPassword)
		if plain, err := vault.NewVaultString(v, "").Decrypt(password); err == nil {
			password = plain
		}
	}
	return types.ConnectionInfo{
		Type:      connType,
		Host:      host.Address,
		Port:      host.Port,
		User:      host.User,
		Password:  password,
		Variables: host.Variables,
	}
}

func chainCallbacks(cbs ...types.EventCallback) types.EventCallback {
	return func(ev types.Event) {
		for _, cb := range cbs {
			if cb != nil {
				cb(ev)
			}
		}
	}
}

// limitedInventory restricts GetHosts/ResolvePattern results to the
// intersection with a --limit pattern, without needing a new Inventory
// implementation.
type limitedInventory struct {
	types.Inventory
	pattern string
}

func (l limitedInventory) GetHosts(pattern string) ([]types.Host, error) {
	all, err := l.Inventory.GetHosts(pattern)
	if err != nil {
		return nil, err
	}
	return l.intersectLimit(all)
}

func (l limitedInventory) ResolvePattern(pattern string) ([]types.Host, error) {
	type patternResolver interface {
		ResolvePattern(pattern string) ([]types.Host, error)
	}
	pr, ok := l.Inventory.(patternResolver)
	var all []types.Host
	var err error
	if ok {
		all, err = pr.ResolvePattern(pattern)
	} else {
		all, err = l.Inventory.GetHosts(pattern)
	}
	if err != nil {
		return nil, err
	}
	return l.intersectLimit(all)
}

func (l limitedInventory) intersectLimit(hosts []types.Host) ([]types.Host, error) {
	type patternResolver interface {
		ResolvePattern(pattern string) ([]types.Host, error)
	}
	var limitSet []types.Host
	var err error
	if pr, ok := l.Inventory.(patternResolver); ok {
		limitSet, err = pr.ResolvePattern(l.pattern)
	} else {
		limitSet, err = l.Inventory.GetHosts(l.pattern)
	}
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(limitSet))
	for _, h := range limitSet {
		allowed[h.Name] = true
	}
	var out []types.Host
	for _, h := range hosts {
		if allowed[h.Name] {
			out = append(out, h)
		}
	}
	return out, nil
}
