// Package grouping clusters vendor listings of the same physical product.
package grouping

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/internal/similarity"
)

// DefaultThreshold is the minimum pairwise similarity for two listings to match.
const DefaultThreshold = 0.65

// Item is one vendor listing considered for grouping.
type Item struct {
	ID                 uuid.UUID
	VendorID           uuid.UUID
	Name               string
	ManufacturerNumber string
}

// Cluster is a set of listings from distinct vendors judged to be the same product.
type Cluster struct {
	Items []Item
	Score float64
}

// IDs returns the member ids in cluster order.
func (c Cluster) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ID
	}
	return ids
}

// Len is the number of listings in the cluster.
func (c Cluster) Len() int { return len(c.Items) }

// ScoreFunc scores a tuple of names in [0, 1].
type ScoreFunc func(names []string) (float64, error)

// Grouper runs the name-based grouping.
type Grouper struct {
	Threshold float64
	Score     ScoreFunc
}

// New returns a grouper using the default similarity scorer.
func New(threshold float64) (*Grouper, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("grouping threshold must be in (0, 1], got %v", threshold)
	}
	return &Grouper{Threshold: threshold, Score: similarity.Score}, nil
}

// Group takes one list of listings per vendor and returns a disjoint set of
// clusters. Listings without a match are absent from the result.
//
// Pairs across every two vendors are accepted above Threshold. Larger clusters
// are built level by level from two accepted clusters of the previous level
// that share all but one listing and add different vendors; a level-k union
// is accepted above Threshold^(k-1). All accepted clusters are then claimed
// greedily, largest and best scoring first.
func (g *Grouper) Group(lists [][]Item) ([]Cluster, error) {
	if g == nil || g.Score == nil {
		return nil, errors.New("grouper is not configured")
	}

	vendorLists := make([][]Item, 0, len(lists))
	for _, list := range lists {
		if len(list) > 0 {
			vendorLists = append(vendorLists, list)
		}
	}
	n := len(vendorLists)
	if n <= 1 {
		return nil, nil
	}

	levels := map[int][]Cluster{}
	pairs, err := g.pairs(vendorLists)
	if err != nil {
		return nil, err
	}
	levels[2] = pairs

	for k := 3; k <= n; k++ {
		prev := levels[k-1]
		if len(prev) == 0 {
			break
		}
		next, err := g.merge(prev, k)
		if err != nil {
			return nil, err
		}
		levels[k] = next
	}

	var pooled []Cluster
	for k := 2; k <= n; k++ {
		pooled = append(pooled, levels[k]...)
	}
	return claim(pooled), nil
}

func (g *Grouper) pairs(lists [][]Item) ([]Cluster, error) {
	var out []Cluster
	for i := 0; i < len(lists); i++ {
		for j := i + 1; j < len(lists); j++ {
			for _, a := range lists[i] {
				for _, b := range lists[j] {
					score, err := g.Score([]string{a.Name, b.Name})
					if err != nil {
						return nil, fmt.Errorf("score %s/%s: %w", a.ID, b.ID, err)
					}
					if score > g.Threshold {
						out = append(out, Cluster{Items: []Item{a, b}, Score: score})
					}
				}
			}
		}
	}
	return out, nil
}

func (g *Grouper) merge(prev []Cluster, k int) ([]Cluster, error) {
	bar := math.Pow(g.Threshold, float64(k-1))
	seen := map[string]struct{}{}
	var out []Cluster

	for i := 0; i < len(prev)-1; i++ {
		a := prev[i]
		aIDs := idSet(a.Items)
		for j := i + 1; j < len(prev); j++ {
			b := prev[j]
			bIDs := idSet(b.Items)
			if !overlaps(aIDs, bIDs) {
				continue
			}
			added := difference(b.Items, aIDs)
			if len(added) != 1 || len(difference(a.Items, bIDs)) != 1 {
				continue
			}
			if sameVendors(vendorDifference(a.Items, b.Items), vendorDifference(b.Items, a.Items)) {
				continue
			}

			union := make([]Item, 0, k)
			union = append(union, a.Items...)
			union = append(union, added...)
			key := clusterKey(union)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			score, err := g.Score(names(union))
			if err != nil {
				return nil, fmt.Errorf("score cluster %s: %w", key, err)
			}
			if score > bar {
				out = append(out, Cluster{Items: union, Score: score})
			}
		}
	}
	return out, nil
}

// claim keeps the best clusters so that no listing appears twice.
func claim(candidates []Cluster) []Cluster {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Len() != candidates[j].Len() {
			return candidates[i].Len() > candidates[j].Len()
		}
		return candidates[i].Score > candidates[j].Score
	})

	claimed := map[uuid.UUID]struct{}{}
	var out []Cluster
	for _, c := range candidates {
		taken := false
		for _, item := range c.Items {
			if _, ok := claimed[item.ID]; ok {
				taken = true
				break
			}
		}
		if taken {
			continue
		}
		for _, item := range c.Items {
			claimed[item.ID] = struct{}{}
		}
		out = append(out, c)
	}
	return out
}

func idSet(items []Item) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		set[item.ID] = struct{}{}
	}
	return set
}

func overlaps(a, b map[uuid.UUID]struct{}) bool {
	for id := range a {
		if _, ok := b[id]; ok {
			return true
		}
	}
	return false
}

func difference(items []Item, exclude map[uuid.UUID]struct{}) []Item {
	var out []Item
	for _, item := range items {
		if _, ok := exclude[item.ID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

func vendorDifference(a, b []Item) []string {
	in := map[uuid.UUID]struct{}{}
	for _, item := range b {
		in[item.VendorID] = struct{}{}
	}
	var out []string
	for _, item := range a {
		if _, ok := in[item.VendorID]; !ok {
			out = append(out, item.VendorID.String())
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func sameVendors(a, b []string) bool {
	return slices.Equal(a, b)
}

func clusterKey(items []Item) string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID.String()
	}
	slices.Sort(ids)
	return strings.Join(ids, ",")
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}
