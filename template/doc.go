// Package template implements the mapping expression evaluator used by
// transformer definitions. Mapping values are arbitrary nested structures
// whose strings may embed {{...}} expressions:
//
//   - {{path.to.field}} walks nested maps and sequences in the data scope
//   - {{items.*.id}} maps a path over every element of a sequence
//   - {{field|fallback}} substitutes a default when the path is missing
//   - {{upper(name)}} calls a registered function; hosts may add their own
//   - {{count + 1}} and {{greeting + "!"}} do arithmetic and concatenation
//
// A string that consists of exactly one expression resolves to the raw value
// with its type preserved; strings mixing text and expressions render to
// text. Expressions are parsed once into a small tree (literals, paths,
// calls, operators) and cached, so repeated renders of the same definition
// do not re-parse.
//
// Evaluation is pure: the only state consulted is the Scope handed in
// (event data, lineage fields, optional loop item) and the registered
// function table.
package template
