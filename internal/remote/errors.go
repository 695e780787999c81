package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any non-2xx response from the cart service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cart service returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the cart service.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
