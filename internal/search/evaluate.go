package search

import (
	"sort"
	"strings"
	"time"

	"asset-library/internal/metrics"
)

// Entry is the read-only view of an asset the engine evaluates against.
// Implementations must return values that are only ever replaced
// wholesale, never mutated in place, so the engine can read them without
// holding the library lock.
type Entry interface {
	ID() string
	Name() string
	URL() string
	Author() string
	Path() string
	Ctime() float64
	Mtime() float64
	TagCount() int
	HasIcon() bool

	// SearchName is the raw concatenation of the searchable string
	// fields, case preserved; compared case-insensitively.
	SearchName() string

	// SearchSet is the lowercased, tokenized, tag-inflected token set of
	// the same fields.
	SearchSet() map[string]struct{}
}

// badIDLength is the length of auto-generated ids flagged by :bad_id.
const badIDLength = 11

// moreTagsThreshold is the tag count below which :more_tags keeps assets.
const moreTagsThreshold = 4

// Evaluate filters and orders entries according to query.
//
// With no query text the baseline is returned: all entries ordered by
// creation time descending. Directive filters apply in fragment order,
// then include/exclude combination with match-count scoring, then any
// sort directives. Multiple sort directives compose as one lexicographic
// multi-key sort with declaration order as priority order, most
// significant key first.
func Evaluate(entries []Entry, query string) []Entry {
	start := time.Now()
	defer func() {
		metrics.SearchQueriesTotal.Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	result := make([]Entry, len(entries))
	copy(result, entries)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Ctime() > result[j].Ctime()
	})

	directives := Parse(query)
	if len(directives) == 0 {
		metrics.SearchResultsReturned.Observe(float64(len(result)))
		return result
	}

	// Explicit id mode short-circuits all other filtering.
	if allowed := idAllowList(directives); allowed != nil {
		result = filterEntries(result, func(e Entry) bool {
			_, ok := allowed[e.ID()]
			return ok
		})
		metrics.SearchResultsReturned.Observe(float64(len(result)))
		return result
	}

	intersection := false
	wholeToken := false
	var includes, excludes []string
	var sorts []Sort

	for _, d := range directives {
		switch d := d.(type) {
		case NoIcon:
			result = filterEntries(result, func(e Entry) bool { return !e.HasIcon() })
		case MoreTags:
			result = filterEntries(result, func(e Entry) bool { return e.TagCount() < moreTagsThreshold })
			sort.SliceStable(result, func(i, j int) bool {
				return result[i].TagCount() > result[j].TagCount()
			})
		case NoURL:
			result = filterEntries(result, func(e Entry) bool { return e.URL() == "" })
		case BadID:
			result = filterEntries(result, func(e Entry) bool { return looksAutoGenerated(e.ID()) })
		case IntersectionMode:
			intersection = true
		case WholeTokenMode:
			wholeToken = true
		case Sort:
			sorts = append(sorts, d)
		case Exclude:
			excludes = append(excludes, d.Term)
		case Include:
			includes = append(includes, d.Term)
		}
	}

	result = combineTerms(result, includes, excludes, intersection, wholeToken)
	result = applySorts(result, sorts)

	metrics.SearchResultsReturned.Observe(float64(len(result)))
	return result
}

// idAllowList returns the accumulated id allow-list, or nil when the
// query carries no IDFilter fragment.
func idAllowList(directives []Directive) map[string]struct{} {
	var allowed map[string]struct{}
	for _, d := range directives {
		if f, ok := d.(IDFilter); ok {
			if allowed == nil {
				allowed = map[string]struct{}{}
			}
			allowed[f.ID] = struct{}{}
		}
	}
	return allowed
}

// combineTerms applies the include/exclude combination step and its
// match-count ordering.
func combineTerms(entries []Entry, includes, excludes []string, intersection, wholeToken bool) []Entry {
	if len(includes) == 0 && len(excludes) == 0 {
		return entries
	}

	type scored struct {
		entry Entry
		score int
	}
	var kept []scored

	for _, e := range entries {
		if excluded(e, excludes) {
			continue
		}

		var matches int
		if wholeToken {
			matches = setMatches(e.SearchSet(), includes)
		} else {
			matches = substringMatches(e.SearchName(), includes)
		}

		pass := false
		switch {
		case len(includes) == 0:
			pass = true
		case intersection:
			pass = matches > 0
		default:
			pass = matches == len(includes)
		}
		if pass {
			kept = append(kept, scored{entry: e, score: matches})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	out := make([]Entry, len(kept))
	for i, s := range kept {
		out[i] = s.entry
	}
	return out
}

func excluded(e Entry, excludes []string) bool {
	set := e.SearchSet()
	for _, term := range excludes {
		if _, ok := set[term]; ok {
			return true
		}
	}
	return false
}

func substringMatches(searchName string, includes []string) int {
	lowered := strings.ToLower(searchName)
	matches := 0
	for _, term := range includes {
		if strings.Contains(lowered, term) {
			matches++
		}
	}
	return matches
}

func setMatches(set map[string]struct{}, includes []string) int {
	matches := 0
	for _, term := range includes {
		if _, ok := set[term]; ok {
			matches++
		}
	}
	return matches
}

// applySorts runs the pushed sort directives as one stable lexicographic
// sort, declaration order = key priority order.
func applySorts(entries []Entry, sorts []Sort) []Entry {
	if len(sorts) == 0 {
		return entries
	}

	sort.SliceStable(entries, func(i, j int) bool {
		for _, s := range sorts {
			cmp := compareField(entries[i], entries[j], s.Field)
			if cmp == 0 {
				continue
			}
			if s.Reverse {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return entries
}

func compareField(a, b Entry, field string) int {
	switch field {
	case "ctime":
		return compareFloat(a.Ctime(), b.Ctime())
	case "mtime":
		return compareFloat(a.Mtime(), b.Mtime())
	case "name":
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	case "url":
		return strings.Compare(strings.ToLower(a.URL()), strings.ToLower(b.URL()))
	case "author":
		return strings.Compare(strings.ToLower(a.Author()), strings.ToLower(b.Author()))
	case "path":
		return strings.Compare(a.Path(), b.Path())
	case "id":
		return strings.Compare(a.ID(), b.ID())
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// looksAutoGenerated reports whether id matches the shape of generated
// ids: exactly eleven lowercase alphanumeric characters.
func looksAutoGenerated(id string) bool {
	if len(id) != badIDLength {
		return false
	}
	for _, c := range id {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func filterEntries(entries []Entry, keep func(Entry) bool) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
