package domain

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoCredential  = errors.New("no credential available")
	ErrNotConnected  = errors.New("connection is not open")
	ErrNotFound      = errors.New("not found")
	ErrStoreNotFound = errors.New("persisted session not found")
)
