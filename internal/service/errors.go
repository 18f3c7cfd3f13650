package service

import "errors"

// ErrValidation marks a request the service refuses on content grounds
var ErrValidation = errors.New("validation failed")
