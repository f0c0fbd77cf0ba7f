// Package search implements the library's compact query language: a
// lexer producing a typed directive list and an evaluator that filters
// and orders assets.
//
// Fragments are whitespace-delimited (quote-aware). Recognized
// directives: id:<value>, :no_icon, :more_tags, :no_url, :bad_id, :i
// (intersection mode), :w (whole-token mode), sort:<field>[:rev] (also
// s:), -<term> (exclude); anything else is an include term. No query
// string is invalid.
package search
