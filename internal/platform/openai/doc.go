// Package openai implements classify.Classifier with OpenAI chat completions.
// The SDK's own retries are disabled: rate limit responses surface as
// classify.ErrRateLimited and are retried by the caller's policy instead.
package openai
