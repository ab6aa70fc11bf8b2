// Package service implements the triage use cases.
//
// TriageService fetches recent emails, drops the ones a previous run already
// handled, classifies the rest with bounded concurrency, and delivers every
// outcome to the registered sinks. The idempotency log is only updated after
// all sinks accepted an outcome, so an interrupted run is repeated rather than
// lost. EvaluationService runs a labeled dataset through the same classifier
// pipeline and scores it.
//
// The service depends on interfaces (Source, classify.Classifier,
// events.EventEmitter) and never on a concrete mailbox, model provider or sink.
package service
