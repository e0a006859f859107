package repositories

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrLockHeld         = errors.New("lock held by another owner")
)
