package features

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is matched by every SchemaError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError reports a required field that is missing or malformed.
type SchemaError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("train %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("train %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrSchemaMismatch) succeed.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }
