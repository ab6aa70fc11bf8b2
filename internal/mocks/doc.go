// Package mocks provides hand-written test doubles for the interfaces the
// triage service depends on. Each mock records its calls under a mutex and
// lets a test override behavior with an Fn field or fixed return values.
package mocks
