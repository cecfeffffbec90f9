// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// ErrInternal indicates internal server error. Callers only ever see this
// kind for unexpected failures; full detail stays in logs.
var ErrInternal = errors.New("internal")
