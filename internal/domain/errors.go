package domain

import "errors"

var (
	// ErrUpstreamUnavailable is returned when a data source cannot be read
	ErrUpstreamUnavailable = errors.New("upstream data source unavailable")

	// ErrMalformedSchema is returned when an input table lacks required columns
	ErrMalformedSchema = errors.New("malformed input schema")

	// ErrNotFound is returned for unknown tables or resources
	ErrNotFound = errors.New("not found")
)
