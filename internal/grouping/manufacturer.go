package grouping

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// NormalizeManufacturerNumber strips separators vendors disagree on.
func NormalizeManufacturerNumber(raw string) string {
	replacer := strings.NewReplacer("-", "", " ", "", ".", "", "/", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(raw)))
}

// GroupByManufacturerNumber clusters listings that carry the same normalised
// manufacturer number across at least two vendors. A cluster holds one
// listing per vendor, the first seen. Clusters are ordered by manufacturer
// number.
func GroupByManufacturerNumber(items []Item) []Cluster {
	byNumber := map[string][]Item{}
	claimed := map[string]map[uuid.UUID]struct{}{}
	for _, item := range items {
		key := NormalizeManufacturerNumber(item.ManufacturerNumber)
		if key == "" {
			continue
		}
		vendors, ok := claimed[key]
		if !ok {
			vendors = map[uuid.UUID]struct{}{}
			claimed[key] = vendors
		}
		if _, dup := vendors[item.VendorID]; dup {
			continue
		}
		vendors[item.VendorID] = struct{}{}
		byNumber[key] = append(byNumber[key], item)
	}

	keys := make([]string, 0, len(byNumber))
	for key, members := range byNumber {
		if len(members) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]Cluster, 0, len(keys))
	for _, key := range keys {
		out = append(out, Cluster{Items: byNumber[key], Score: 1})
	}
	return out
}
