package category

import (
	"sort"
	"strings"
)

// Others collects results the backend could not attribute to a drive.
const Others = "others"

// Priority is the display order of known categories.
var Priority = []string{
	"baidu", "aliyun", "quark", "tianyi", "uc", "mobile",
	"pan115", "pikpak", "xunlei", "pan123", "magnet", "ed2k", Others,
}

// aliases maps integer-named drives to names that cannot be mistaken for an index.
var aliases = map[string]string{
	"115": "pan115",
	"123": "pan123",
}

var rank = func() map[string]int {
	m := make(map[string]int, len(Priority))
	for i, k := range Priority {
		m[k] = i
	}
	return m
}()

// Item is one link in a category.
type Item struct {
	URL      string   `json:"url"`
	Password string   `json:"password,omitempty"`
	Note     string   `json:"note,omitempty"`
	Datetime string   `json:"datetime,omitempty"`
	Source   string   `json:"source,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// Group is a category key with its items.
type Group struct {
	Key   string `json:"key"`
	Items []Item `json:"items"`
}

// Normalize lowercases and trims a category key and renames integer-named drives.
func Normalize(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := aliases[k]; ok {
		return alias
	}
	return k
}

// Known reports whether the key is in the priority list.
func Known(key string) bool {
	_, ok := rank[key]
	return ok
}

// Order sorts groups in place by priority. Unknown keys go last and keep
// their relative order.
func Order(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return rankOf(groups[i].Key) < rankOf(groups[j].Key)
	})
}

// Build normalizes keys, merges groups that normalize to the same key
// (first occurrence position wins) and orders the result.
func Build(keys []string, byKey map[string][]Item) []Group {
	groups := make([]Group, 0, len(keys))
	index := make(map[string]int, len(keys))
	for _, raw := range keys {
		items, ok := byKey[raw]
		if !ok {
			continue
		}
		k := Normalize(raw)
		if k == "" {
			k = Others
		}
		if i, dup := index[k]; dup {
			groups[i].Items = append(groups[i].Items, items...)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, Group{Key: k, Items: append([]Item(nil), items...)})
	}
	Order(groups)
	return groups
}

// Count returns the number of items across all groups.
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Items)
	}
	return n
}

func rankOf(key string) int {
	if r, ok := rank[key]; ok {
		return r
	}
	return len(Priority)
}
