// Package gemini implements classify.Classifier on top of Google's Gemini API.
//
// The classifier renders the shared classification prompt, asks the model for
// a JSON answer at temperature zero and parses it with the shared response
// parser. Provider errors are translated into the classify error taxonomy:
// quota and overload responses become classify.ErrRateLimited so the caller's
// retry policy can back off, safety blocks become classify.ErrContentBlocked.
package gemini
