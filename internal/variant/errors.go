package variant

import "fmt"

// NotFoundError is returned for any operation naming an unknown variant id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("variant not found: %s", e.ID)
}
