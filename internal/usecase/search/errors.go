package search

import "errors"

// Search errors.
var (
	ErrUnknownContentType = errors.New("unknown content type")
	ErrNotSearchable      = errors.New("search backend does not support queries")
)
