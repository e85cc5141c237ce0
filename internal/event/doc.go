// Package event defines the structured, cancellable events built by phase
// unwinds and the dispatcher they are posted to.
//
// Each event carries the payload of one capture group and a snapshot of the
// cause stack taken when the event was built. Dispatch is synchronous: Post
// runs every listener in order and returns the final cancellation decision.
// Listeners may re-enter the phase tracker; nested phases complete before
// Post returns.
package event
