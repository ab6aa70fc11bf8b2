package classify

import (
	"errors"
	"fmt"

	"github.com/phrazzld/mailtriage/internal/task"
)

// Common errors returned by classifiers.
var (
	// ErrRateLimited is returned when the model provider throttles requests.
	// It wraps task.ErrTransient so a RetryPolicy retries it.
	ErrRateLimited = fmt.Errorf("%w: rate limited by model provider", task.ErrTransient)

	// ErrInvalidResponse is returned when the model answer cannot be parsed or
	// does not match the response schema.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider refuses the content.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when a classifier is misconfigured.
	ErrInvalidConfig = errors.New("invalid classifier configuration")

	// ErrClassificationFailed is returned for provider failures that are not
	// worth retrying.
	ErrClassificationFailed = errors.New("classification failed")
)
