package inventory

import (
	"sort"
	"strings"

	"github.com/nexus-automation/nexus/pkg/types"
)

// ResolvePattern evaluates a colon-separated host pattern expression
// supporting Ansible-style group algebra: `a:b` is a union of a and b,
// `a:&b` intersects the running set with b, and `a:!b` excludes b from
// the running set. Terms are evaluated strictly left to right; a bare
// leading term with no preceding set simply seeds it.
func (inv *StaticInventory) ResolvePattern(pattern string) ([]types.Host, error) {
	terms := strings.Split(pattern, ":")
	set := map[string]types.Host{}

	for _, raw := range terms {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}

		op := "union"
		switch {
		case strings.HasPrefix(term, "&"):
			op = "intersect"
			term = strings.TrimPrefix(term, "&")
		case strings.HasPrefix(term, "!"):
			op = "exclude"
			term = strings.TrimPrefix(term, "!")
		}
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		matched, err := inv.GetHosts(term)
		if err != nil {
			return nil, err
		}
		matchedSet := make(map[string]types.Host, len(matched))
		for _, h := range matched {
			matchedSet[h.Name] = h
		}

		switch op {
		case "union":
			for name, h := range matchedSet {
				set[name] = h
			}
		case "intersect":
			for name := range set {
				if _, ok := matchedSet[name]; !ok {
					delete(set, name)
				}
			}
		case "exclude":
			for name := range matchedSet {
				delete(set, name)
			}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]types.Host, len(names))
	for i, name := range names {
		result[i] = set[name]
	}
	return result, nil
}
