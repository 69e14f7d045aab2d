// internal/checkpoint/errors.go
package checkpoint

import (
	"errors"
	"fmt"
)

// NotFoundError reports a rewind target that does not exist. This is the
// one condition the engine surfaces as an error rather than a partial
// result, because there is nothing partial to report.
type NotFoundError struct {
	CheckpointID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("checkpoint %s not found", e.CheckpointID)
}

// IsNotFound reports whether err is a checkpoint lookup failure
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
