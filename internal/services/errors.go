package services

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrBlogNotFound       = errors.New("blog not found")
	ErrUsernameRequired   = errors.New("username required")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username may contain only letters, digits, '-' and '_'")
	ErrImageTooLarge      = errors.New("image too large")
	ErrUnsupportedImage   = errors.New("unsupported image")
	ErrCredentialNotFound = errors.New("provider credential not found")
	ErrAPIKeyRequired     = errors.New("api key required")
)
