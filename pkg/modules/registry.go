// Package modules provides the module system architecture for nexus.
package modules

import (
	"fmt"
	"sync"

	"github.com/nexus-automation/nexus/pkg/types"
)

// ModuleRegistry manages registered modules
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]types.Module
}

// NewModuleRegistry creates a new module registry
func NewModuleRegistry() *ModuleRegistry {
	registry := &ModuleRegistry{
		modules: make(map[string]types.Module),
	}

	// Register built-in modules
	registry.registerBuiltinModules()

	return registry
}

// RegisterModule registers a module in the registry
func (r *ModuleRegistry) RegisterModule(module types.Module) error {
	if module == nil {
		return fmt.Errorf("module cannot be nil")
	}

	name := module.Name()
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules[name] = module
	return nil
}

// GetModule retrieves a module by name
func (r *ModuleRegistry) GetModule(name string) (types.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	module, exists := r.modules[name]
	if !exists {
		return nil, types.ErrModuleNotFound
	}

	return module, nil
}

// ListModules returns all registered module names
func (r *ModuleRegistry) ListModules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.modules {
		names = append(names, name)
	}

	return names
}

// GetModuleDocumentation returns documentation for a module
func (r *ModuleRegistry) GetModuleDocumentation(name string) (*types.ModuleDoc, error) {
	module, err := r.GetModule(name)
	if err != nil {
		return nil, err
	}

	doc := module.Documentation()
	return &doc, nil
}

// UnregisterModule removes a module from the registry
func (r *ModuleRegistry) UnregisterModule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return types.ErrModuleNotFound
	}

	delete(r.modules, name)
	return nil
}

// ValidateModuleArgs validates module arguments before execution
func (r *ModuleRegistry) ValidateModuleArgs(name string, args map[string]interface{}) error {
	module, err := r.GetModule(name)
	if err != nil {
		return err
	}

	return module.Validate(args)
}

// registerBuiltinModules registers the curated module set every §8
// scenario exercises: package, service, file, copy, template, command,
// shell, ping, setup, debug. The teacher's much larger module library
// (apt/yum/dnf/gem/npm/pip/cron/mount/sysctl/iptables/user/group/…)
// covers package-manager and system-configuration breadth no named
// operation needs and is not wired here.
func (r *ModuleRegistry) registerBuiltinModules() {
	r.RegisterModule(NewPingModule())
	r.RegisterModule(NewCommandModule())
	r.RegisterModule(NewCopyModule())
	r.RegisterModule(NewTemplateModule())
	r.RegisterModule(NewFileModule())
	r.RegisterModule(NewSetupModule())
	r.RegisterModule(NewShellModule())
	r.RegisterModule(NewDebugModule())
	r.RegisterModule(NewServiceModule())
	r.RegisterModule(NewPackageModule())
}

// DefaultModuleRegistry provides a default module registry instance
var DefaultModuleRegistry = NewModuleRegistry()
