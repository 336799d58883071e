package inmemdb

import (
	"sort"

	"github.com/ministerio/escalas/core"
)

// sortBy sorts items by the given orderings, ignoring fields missing from less.
func sortBy[T any](items []T, ordering []core.DBOrdering, less map[string]func(a, b T) bool, def core.DBOrdering) {
	known := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := less[ord.Field]; ok {
			known = append(known, ord)
		}
	}
	if len(known) == 0 {
		known = append(known, def)
	}

	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range known {
			lessFn := less[ord.Field]
			a, b := items[i], items[j]
			if !ord.Ascending {
				a, b = b, a
			}
			if lessFn(a, b) {
				return true
			}
			if lessFn(b, a) {
				return false
			}
		}
		return false
	})
}
