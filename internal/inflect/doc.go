// Package inflect provides heuristic singular/plural transforms used to
// widen search-set matching, so a singular query term matches
// plural-tagged assets and vice versa.
package inflect
