package engine

import "golang.org/x/exp/slices"

// Wildcard selects a whole partition, or every held column.
const Wildcard = "*"

// Selection is the sort key and the columns an operation applies to.
type Selection struct {
	Identifier string
	Columns    []string
}

// ResolveSelection turns the tokens of a call into a selection. held are the
// fields the caller supplied and recordKey the key of the record.
//
//	()               -> ("*", held)
//	("*")            -> (recordKey, held)
//	(id)             -> (id, held)
//	(id, "*")        -> (id, held)
//	(id, cols...)    -> (id, cols)
//
// Missing information always widens the selection; it never fails.
func ResolveSelection(tokens []string, held []string, recordKey string) Selection {
	switch {
	case len(tokens) == 0:
		return Selection{Identifier: Wildcard, Columns: slices.Clone(held)}
	case len(tokens) == 1 && tokens[0] == Wildcard:
		return Selection{Identifier: recordKey, Columns: slices.Clone(held)}
	case len(tokens) == 1:
		return Selection{Identifier: tokens[0], Columns: slices.Clone(held)}
	case tokens[1] == Wildcard:
		return Selection{Identifier: tokens[0], Columns: slices.Clone(held)}
	}
	return Selection{Identifier: tokens[0], Columns: slices.Clone(tokens[1:])}
}
