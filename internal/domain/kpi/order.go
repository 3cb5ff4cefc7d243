package kpi

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale orders sprint names when no locale is configured.
var DefaultLocale = language.English

// ordering sorts display names with locale-aware collation. A collator is
// not safe for concurrent use, so one is built per sort.
type ordering struct {
	tag language.Tag
}

func (o ordering) collator() *collate.Collator {
	return collate.New(o.tag)
}

func (o ordering) strings(names []string) {
	c := o.collator()
	slices.SortStableFunc(names, func(a, b string) int {
		return c.CompareString(a, b)
	})
}

func sortRows[T any](o ordering, rows []T, name func(T) string) {
	c := o.collator()
	slices.SortStableFunc(rows, func(a, b T) int {
		return c.CompareString(name(a), name(b))
	})
}
