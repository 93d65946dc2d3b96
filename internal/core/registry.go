package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// registry holds the module constructors compiled into the binary. Module
// packages fill it from init, so it is read-mostly after startup.
var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule records the ModuleInfo of instance. The ID must have the
// "namespace.name" form. It panics on an invalid or duplicate registration
// and is meant to be called from init.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID.Namespace() == "" || info.ID.Name() == "" || info.ID.Name() == string(info.ID) {
		panic(fmt.Sprintf("core: module ID %q is not of the form namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule returns the registration for id.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registration ordered by ID.
func GetModules() []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()
	return slices.SortedFunc(maps.Values(registry.byID), func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// ModulesByNamespace groups the registered IDs by namespace, each group
// ordered by ID.
func ModulesByNamespace() map[string][]ModuleID {
	out := make(map[string][]ModuleID)
	for _, info := range GetModules() {
		ns := info.ID.Namespace()
		out[ns] = append(out[ns], info.ID)
	}
	return out
}

// resetRegistry clears the registry between tests.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
