package dupes

import (
	"sort"
	"time"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/metrics"
)

// Group is a set of photos whose hashes chain together within the
// threshold. Representative is the lexicographically smallest ID so
// repeated scans name groups stably.
type Group struct {
	Representative string   `json:"representative"`
	PhotoIDs       []string `json:"photoIds"`
}

const (
	numBands = 8
	bandBits = 64 / numBands
)

// FindGroups partitions the given hash entries into near-duplicate
// groups. Every photo lands in exactly one group; a photo with no
// partner within the threshold forms a group of one.
//
// Candidate pairs come from locality-sensitive banding: each hash is
// cut into 8 bands of 8 bits, and only photos sharing an identical
// band value in some band are compared. Two hashes within distance 7
// must agree on at least one band, so no such pair is missed; pairs
// at distance 8 to 20 can in rare cases spread their differing bits
// across all bands and go undetected. Grouping is transitive: A~B and
// B~C puts A, B, C in one group even if A and C exceed the threshold.
func FindGroups(entries []catalog.HashEntry, threshold int) []Group {
	start := time.Now()
	defer func() {
		metrics.DuplicateScansTotal.Inc()
		metrics.DuplicateScanDuration.Observe(time.Since(start).Seconds())
	}()

	if threshold < 0 {
		threshold = DefaultThreshold
	}
	if threshold > MaxThreshold {
		threshold = MaxThreshold
	}

	uf := newUnionFind(len(entries))

	// Bucket by band value, then verify candidates within each bucket.
	buckets := make(map[uint64][]int)
	for band := 0; band < numBands; band++ {
		shift := uint(band * bandBits)
		for i, e := range entries {
			// Key includes the band index so values from different
			// bands never collide.
			key := uint64(band)<<32 | (e.Hash>>shift)&0xFF
			buckets[key] = append(buckets[key], i)
		}
	}

	for _, bucket := range buckets {
		for i := 1; i < len(bucket); i++ {
			a := bucket[i]
			for _, b := range bucket[:i] {
				if uf.find(a) == uf.find(b) {
					continue
				}
				if Similar(entries[a].Hash, entries[b].Hash, threshold) {
					uf.union(a, b)
				}
			}
		}
	}

	members := make(map[int][]string)
	for i, e := range entries {
		root := uf.find(i)
		members[root] = append(members[root], e.ID)
	}

	var groups []Group
	for _, ids := range members {
		sort.Strings(ids)
		groups = append(groups, Group{Representative: ids[0], PhotoIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Representative < groups[j].Representative
	})
	return groups
}

// unionFind with path compression and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
