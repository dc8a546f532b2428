package index

import "errors"

// Registry errors.
var (
	ErrNotStruct        = errors.New("model must be a struct")
	ErrDuplicateModel   = errors.New("model already registered")
	ErrNotIndexable     = errors.New("model is not indexable")
	ErrModelNotFound    = errors.New("model not registered")
	ErrSchemaUnresolved = errors.New("model schema could not be parsed")
)
