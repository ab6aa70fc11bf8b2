// Package domain contains the entities of mail triage: the emails read from a
// mailbox, the classification a model assigns to each of them and the
// calendar events derived from important ones. It has no knowledge of the
// services that produce or consume these values.
package domain
