package repository

import "errors"

var (
	// ErrPersistence marks any storage failure surfaced by this package. The
	// underlying driver error stays in the chain.
	ErrPersistence = errors.New("persistence failure")

	ErrUnknownModel = errors.New("unknown model")
)
