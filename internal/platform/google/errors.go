package google

import "errors"

var (
	// ErrCredentials indicates the OAuth client file is missing or invalid.
	ErrCredentials = errors.New("invalid google credentials")

	// ErrAuthorization indicates the user could not be authorized.
	ErrAuthorization = errors.New("google authorization failed")

	// ErrFetch indicates messages could not be listed or read.
	ErrFetch = errors.New("failed to fetch messages")

	// ErrCalendar indicates a calendar event could not be created.
	ErrCalendar = errors.New("failed to create calendar event")
)
