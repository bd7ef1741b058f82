package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrLocationRequired  = errors.New("location coordinates are required for discovery")
	ErrInvalidOrigin     = errors.New("invalid origin coordinates")
	ErrInvalidRadius     = errors.New("invalid radius")
	ErrInvalidPagination = errors.New("invalid pagination")
	ErrInvalidLocation   = errors.New("invalid location")
	ErrNoFieldsToUpdate  = errors.New("no valid fields to update")
)
