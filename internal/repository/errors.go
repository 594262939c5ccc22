package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSeatsUnavailable = errors.New("some seats unavailable")
	ErrSerialization    = errors.New("transaction could not be serialized")
	ErrUnavailable      = errors.New("store unavailable")
)
