package engine

import (
	"sort"
	"strings"

	"github.com/franksops/s3xfer/provider"
)

// Group is the aggregate of every listed object sharing a first path segment.
type Group struct {
	Name  string
	Count int
	Bytes int64
}

// ListingTotals is the overall count and size of a listing.
type ListingTotals struct {
	Keys  int
	Bytes int64
}

// Totals sums the entries of a listing.
func Totals(entries []provider.Entry) ListingTotals {
	t := ListingTotals{Keys: len(entries)}
	for _, e := range entries {
		t.Bytes += e.Size
	}
	return t
}

func listingPrefix(root string) string {
	root = strings.TrimPrefix(root, "s3://")
	return strings.TrimSuffix(strings.TrimPrefix(root, "/"), "/") + "/"
}

// RelativeKey returns the key of entry as shown in a listing of root: the
// full "bucket/key" when full is set, otherwise the part below root.
func RelativeKey(entry provider.Entry, root string, full bool) string {
	if full {
		return entry.Key
	}
	return strings.TrimPrefix(entry.Key, listingPrefix(root))
}

// GroupBySegment buckets entries by the first path component below root.
// Groups with a single member are dropped. The result is sorted by name,
// ignoring case.
func GroupBySegment(entries []provider.Entry, root string) []Group {
	prefix := listingPrefix(root)

	index := make(map[string]*Group)
	for _, e := range entries {
		rel := strings.TrimPrefix(e.Key, prefix)
		name, _, _ := strings.Cut(rel, "/")

		g, ok := index[name]
		if !ok {
			g = &Group{Name: name}
			index[name] = g
		}
		g.Count++
		g.Bytes += e.Size
	}

	groups := make([]Group, 0, len(index))
	for _, g := range index {
		if g.Count <= 1 {
			continue
		}
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		li, lj := strings.ToLower(groups[i].Name), strings.ToLower(groups[j].Name)
		if li != lj {
			return li < lj
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}
