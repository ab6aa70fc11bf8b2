// Package events fans triage outcomes out to delivery sinks.
//
// The service emits one TriageEvent per processed email. Handlers registered
// with an emitter (calendar, database, message broker, log) receive every
// event and decide on their own whether to act. Services emit events without
// knowing which handlers will process them.
//
// The primary components are:
// - TriageEvent: the outcome for one email
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
