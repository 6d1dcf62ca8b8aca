package attr

import "fmt"

// TypeKindError is returned when a value fits none of the wire kinds.
type TypeKindError struct {
	Value any
}

func (e *TypeKindError) Error() string {
	return fmt.Sprintf("no wire kind for value of type %T", e.Value)
}

// UnknownTagError is returned when decoding meets a tag outside the wire set.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown wire tag %q", e.Tag)
}
