package config

import "slices"

// Resolve returns the configured module IDs in load order: sorted by ID,
// except that the keepalive module always loads last so every instance it
// depends on has been provisioned.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		if id != KeepaliveModule {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if _, ok := cfg.Modules[KeepaliveModule]; ok {
		ids = append(ids, KeepaliveModule)
	}
	return ids
}
