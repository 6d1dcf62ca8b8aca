package cacheitem

import (
	"errors"
	"fmt"
	"strings"
)

// MissingRequiredFieldError is returned when a record cannot be addressed
// because client, source or key did not resolve to a value.
type MissingRequiredFieldError struct {
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// AmbiguousPartitionKeyError is returned when a schedule record does not
// have exactly one partition key candidate.
type AmbiguousPartitionKeyError struct {
	Candidates []string
}

func (e *AmbiguousPartitionKeyError) Error() string {
	if len(e.Candidates) == 0 {
		return "no partition key candidate: pass a key or one scheduling field"
	}
	return fmt.Sprintf("ambiguous partition key, candidates: %s", strings.Join(e.Candidates, ", "))
}

// UnknownVariantError is returned when an envelope names a record type that
// is not registered.
type UnknownVariantError struct {
	Type string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Type)
}

var ErrUnusableData = errors.New("data is neither a JSON object nor a comma separated column list")
