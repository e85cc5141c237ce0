// Package cause implements the cause stack: the ordered "why" list consulted
// when events are built.
//
// Causes are pushed and popped individually; frames group pushes and
// context values so that everything added inside a frame is undone when the
// frame is popped. The phase tracker pushes one frame per phase on entry and
// pops it on exit, so the stack stays in lock-step with the phase stack.
//
// A Cause is an immutable snapshot of the stack. Its entries are ordered
// most-recent first: Root() is the proximate cause.
package cause
