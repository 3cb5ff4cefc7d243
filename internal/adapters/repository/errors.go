package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrMigrate = errors.New("schema migration failed")
	ErrQuery   = errors.New("snapshot query failed")
	ErrSave    = errors.New("snapshot save failed")
)
