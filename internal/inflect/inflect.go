package inflect

import "strings"

// Pluralize returns a plural form of word using English suffix heuristics.
// The result is approximate: irregular nouns are not handled. Words that
// already look plural generally come back unchanged enough for search-set
// widening purposes.
func Pluralize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "s"),
		strings.HasSuffix(word, "x"),
		strings.HasSuffix(word, "z"),
		strings.HasSuffix(word, "ch"),
		strings.HasSuffix(word, "sh"):
		return word + "es"
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(word[len(word)-2]):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// Singularize returns a singular form of word using English suffix
// heuristics. Like Pluralize it is best-effort: applying it to a word
// that is already singular may still strip a trailing "s" (e.g. "brass"),
// which only widens the search set and never corrupts stored tags.
func Singularize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "xes"),
		strings.HasSuffix(word, "zes"),
		strings.HasSuffix(word, "ches"),
		strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s") && len(word) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}

// Variants returns word plus its singular and plural forms, deduplicated,
// preserving the original first.
func Variants(word string) []string {
	out := []string{word}
	for _, v := range []string{Singularize(word), Pluralize(word)} {
		if v != "" && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
