package core

import "strings"

// ModuleID is a dotted module identifier such as "memory.sqlite".
// The first segment is the namespace.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registrable module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the interface every registrable component implements.
type Module interface {
	ModuleInfo() ModuleInfo
}
