package service

import "errors"

// Sentinel errors returned by the services. Wrap them with fmt.Errorf("...: %w")
// and match with errors.Is in handlers.
var (
	// ErrUsernameTaken: 400
	ErrUsernameTaken = errors.New("Username already registered")
	// ErrInvalidCredentials: 400, same message for unknown user and wrong password
	ErrInvalidCredentials = errors.New("Incorrect username or password")
	// ErrPasswordTooLong: 400, bcrypt only hashes the first 72 bytes
	ErrPasswordTooLong = errors.New("Password must be at most 72 bytes")
	// ErrUnauthorized: 401
	ErrUnauthorized = errors.New("Invalid or expired token")

	// ErrBucketNotFound: 404
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrFileNotFound: 404
	ErrFileNotFound = errors.New("file not found")
	// ErrReadOnlyBucket: 403
	ErrReadOnlyBucket = errors.New("File deletion not supported for public buckets. Use authenticated access for write operations.")
	// ErrEmptyFilename: 400
	ErrEmptyFilename = errors.New("No filename provided")
	// ErrEmptyFile: 400
	ErrEmptyFile = errors.New("Empty file provided")
)
