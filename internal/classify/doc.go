// Package classify defines the boundary between mail triage and the language
// models that decide whether an email is important. It owns the prompt, the
// JSON contract of the model's answer and the error taxonomy that the retry
// logic relies on. Concrete model clients live under internal/platform.
package classify
