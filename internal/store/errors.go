package store

import "errors"

var (
	// ErrUserNotFound indicates no user exists with the given email or ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrChatNotFound indicates no chat exists with the given ID.
	ErrChatNotFound = errors.New("chat not found")
	// ErrVersionConflict indicates a write carried a stale version token.
	ErrVersionConflict = errors.New("chat version conflict")
)
