package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/majlis/internal/core"
)

// loadOrder ranks namespaces so that storage and providers are provisioned
// before the transports that consume them. Unknown namespaces load last.
var loadOrder = map[string]int{
	"memory":   0,
	"provider": 1,
	"search":   2,
	"channel":  3,
	"gateway":  4,
}

// Resolve returns the module IDs from the configuration in load order:
// by namespace rank, then alphabetically.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	if r, ok := loadOrder[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(loadOrder)
}
