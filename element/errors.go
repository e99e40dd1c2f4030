package element

import "fmt"

type ErrorKind int

const (
	// ReferenceError is a node, way or member reference that does not
	// resolve within the graph.
	ReferenceError ErrorKind = iota
	// ValueError is an unparsable field value (number, date).
	ValueError
	// KeyError is a duplicate business key.
	KeyError
)

var errorKindNames = map[ErrorKind]string{
	ReferenceError: "reference",
	ValueError:     "value",
	KeyError:       "key",
}

func (k ErrorKind) String() string {
	return errorKindNames[k]
}

// EntityError is a non-fatal error of a single element. The element is
// skipped and processing continues with the rest of the graph.
type EntityError struct {
	Kind ErrorKind
	Type string
	ID   int64
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s error in %s %d: %v", e.Kind, e.Type, e.ID, e.Err)
}

// Cause returns the underlying error, see github.com/pkg/errors.Cause.
func (e *EntityError) Cause() error {
	return e.Err
}
