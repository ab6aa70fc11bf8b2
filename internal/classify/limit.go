package classify

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// Limited paces calls to a classifier with a token bucket so a batch stays
// under the provider's request quota instead of provoking rate limit errors.
type Limited struct {
	next    Classifier
	limiter *rate.Limiter
}

// NewLimited wraps next with a limit of rps requests per second and the given
// burst. A non-positive rps disables the limit.
func NewLimited(next Classifier, rps float64, burst int) *Limited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Classify waits for a token and then calls the wrapped classifier.
func (l *Limited) Classify(ctx context.Context, email domain.Email) (domain.Classification, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.Classification{}, err
	}
	return l.next.Classify(ctx, email)
}
