package kv

import "sort"

// Merge combines any number of partial table registries into one, the way
// erigon-lib's tables.go assembles ChaindataTablesCfg out of several
// feature-specific partial maps at init time. Panics on a duplicate table
// name since that indicates two packages disagree about a table's layout.
func Merge(cfgs ...TableCfg) TableCfg {
	out := make(TableCfg)
	for _, cfg := range cfgs {
		for name, item := range cfg {
			if _, ok := out[name]; ok {
				panic("kv: duplicate table registered: " + name)
			}
			out[name] = item
		}
	}
	return out
}

// SortedNames returns the table names of cfg in ascending order, the order
// substrates open/create them in so creation is deterministic across runs.
func SortedNames(cfg TableCfg) []string {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
