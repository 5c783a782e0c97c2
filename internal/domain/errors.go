package domain

import "errors"

// ErrConfig marks configuration errors: missing settings or required columns.
// They are fatal and never retried.
var ErrConfig = errors.New("configuration error")
