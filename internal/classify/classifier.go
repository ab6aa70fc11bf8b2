package classify

import (
	"context"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/task"
)

// Classifier decides whether an email deserves attention.
//
// Implementations return an error wrapping ErrRateLimited when throttled so
// callers can retry, and ErrInvalidResponse when the model answered with
// something that is not a classification.
type Classifier interface {
	Classify(ctx context.Context, email domain.Email) (domain.Classification, error)
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, email domain.Email) (domain.Classification, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, email domain.Email) (domain.Classification, error) {
	return f(ctx, email)
}

// Operation exposes c as a task operation over emails.
func Operation(c Classifier) task.Operation[domain.Email, domain.Classification] {
	return c.Classify
}

// Fallback is the task fallback for emails whose classification timed out.
func Fallback(email domain.Email, cause error) domain.Classification {
	return domain.FallbackClassification(email, cause.Error())
}
