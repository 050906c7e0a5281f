package domain

import (
	"fmt"
	"strings"
)

// DexSet is a bitmask of venues a route may touch.
type DexSet uint8

const (
	DexRaydium DexSet = 1 << iota
	DexMeteoraDLMM
	DexMeteora
	DexWhirlpool
	DexPhoenix
)

// DexAll is the default routing set. Plain Meteora pools are excluded;
// their quotes go stale too fast to close a cycle.
const DexAll = DexRaydium | DexMeteoraDLMM | DexWhirlpool | DexPhoenix

var dexNames = []struct {
	flag DexSet
	name string
}{
	{DexRaydium, "Raydium"},
	{DexMeteoraDLMM, "Meteora DLMM"},
	{DexMeteora, "Meteora"},
	{DexWhirlpool, "Whirlpool"},
	{DexPhoenix, "Phoenix"},
}

// String renders the set as the comma list the aggregator expects.
func (d DexSet) String() string {
	var parts []string
	for _, entry := range dexNames {
		if d&entry.flag != 0 {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, ",")
}

// Exclude returns the set without the given venues.
func (d DexSet) Exclude(venues DexSet) DexSet {
	return d &^ venues
}

// ParseDexSet parses a comma list of venue names, case-insensitive.
func ParseDexSet(s string) (DexSet, error) {
	var out DexSet
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		matched := false
		for _, entry := range dexNames {
			if strings.EqualFold(entry.name, name) {
				out |= entry.flag
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown dex %q", name)
		}
	}
	return out, nil
}
