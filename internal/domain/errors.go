package domain

import "errors"

// ErrInvalidConfig is returned by Validate and by component constructors
// when configuration values are rejected.
var ErrInvalidConfig = errors.New("invalid configuration")
