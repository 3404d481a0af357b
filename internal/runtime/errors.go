package runtime

import "errors"

// ErrCreateFailed wraps the underlying Docker SDK error on a failed create.
var ErrCreateFailed = errors.New("failed to create container")
