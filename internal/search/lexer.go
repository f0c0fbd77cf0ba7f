package search

import (
	"regexp"
	"strings"
)

// Directive is one parsed query fragment. The lexer produces a typed
// directive list so the evaluator can be tested per directive kind.
type Directive interface{ isDirective() }

// IDFilter locks the result set to an explicit asset id. Multiple
// IDFilter fragments accumulate an allow-list and short-circuit all
// other filtering.
type IDFilter struct{ ID string }

// NoIcon keeps only assets whose icon file is absent.
type NoIcon struct{}

// MoreTags keeps only assets with fewer than four tags and sorts the
// working list by tag count descending.
type MoreTags struct{}

// NoURL keeps only assets with an empty url field.
type NoURL struct{}

// BadID keeps only assets whose id looks auto-generated: exactly eleven
// lowercase alphanumeric characters.
type BadID struct{}

// IntersectionMode switches include-term combination from subset (AND)
// to intersection (OR) semantics.
type IntersectionMode struct{}

// WholeTokenMode switches include-term matching from substring to exact
// set membership.
type WholeTokenMode struct{}

// Sort pushes a sort directive for one of the whitelisted fields.
type Sort struct {
	Field   string
	Reverse bool
}

// Exclude drops assets whose search set contains the term.
type Exclude struct{ Term string }

// Include keeps assets matching the term.
type Include struct{ Term string }

func (IDFilter) isDirective()         {}
func (NoIcon) isDirective()           {}
func (MoreTags) isDirective()         {}
func (NoURL) isDirective()            {}
func (BadID) isDirective()            {}
func (IntersectionMode) isDirective() {}
func (WholeTokenMode) isDirective()   {}
func (Sort) isDirective()             {}
func (Exclude) isDirective()          {}
func (Include) isDirective()          {}

// sortFields is the whitelist of sortable attributes. Unrecognized
// fields are silently ignored.
var sortFields = map[string]bool{
	"name":   true,
	"url":    true,
	"author": true,
	"path":   true,
	"id":     true,
	"ctime":  true,
	"mtime":  true,
}

// fragmentPattern splits on whitespace but keeps a quoted substring,
// including embedded whitespace, inside one fragment.
var fragmentPattern = regexp.MustCompile(`[^\s"]*"[^"]*"[^\s"]*|\S+`)

// Tokenize lowercases and trims the query and splits it into fragments.
func Tokenize(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	return fragmentPattern.FindAllString(query, -1)
}

// Parse turns a raw query into its directive list. No query text is
// invalid: unrecognized fragments degrade to plain include terms.
func Parse(query string) []Directive {
	var directives []Directive
	for _, fragment := range Tokenize(query) {
		if d, ok := parseFragment(fragment); ok {
			directives = append(directives, d)
		}
	}
	return directives
}

func parseFragment(fragment string) (Directive, bool) {
	switch {
	case strings.HasPrefix(fragment, "id:"):
		id := unquote(strings.TrimPrefix(fragment, "id:"))
		if id == "" {
			return nil, false
		}
		return IDFilter{ID: id}, true
	case fragment == ":no_icon":
		return NoIcon{}, true
	case fragment == ":more_tags":
		return MoreTags{}, true
	case fragment == ":no_url":
		return NoURL{}, true
	case fragment == ":bad_id":
		return BadID{}, true
	case fragment == ":i":
		return IntersectionMode{}, true
	case fragment == ":w":
		return WholeTokenMode{}, true
	case strings.HasPrefix(fragment, "sort:"):
		return parseSort(strings.TrimPrefix(fragment, "sort:"))
	case strings.HasPrefix(fragment, "s:"):
		return parseSort(strings.TrimPrefix(fragment, "s:"))
	case strings.HasPrefix(fragment, "-"):
		term := unquote(strings.TrimPrefix(fragment, "-"))
		if term == "" {
			return nil, false
		}
		return Exclude{Term: term}, true
	default:
		term := unquote(fragment)
		if term == "" {
			return nil, false
		}
		return Include{Term: term}, true
	}
}

func parseSort(spec string) (Directive, bool) {
	reverse := false
	if strings.HasSuffix(spec, ":rev") {
		reverse = true
		spec = strings.TrimSuffix(spec, ":rev")
	}
	if !sortFields[spec] {
		// Unknown sort fields are ignored rather than erroring.
		return nil, false
	}
	return Sort{Field: spec, Reverse: reverse}, true
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
