package types

import "errors"

// Sentinel errors used to classify failures of a branch query. Callers wrap
// them with goerr and match them with errors.Is.
var (
	ErrUnauthorized    = errors.New("invalid credentials")
	ErrNotFound        = errors.New("branch or repository not found")
	ErrConnection      = errors.New("connection failure")
	ErrInvalidResponse = errors.New("invalid branch response")
)
