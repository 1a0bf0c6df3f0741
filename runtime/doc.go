// Package runtime implements the structured-concurrency core of a Kestrel
// node.
//
// Every unit of concurrent work runs under a Context carrying a hierarchical
// label path, a cancellation signal and the metric registry handle. Actors
// communicate exclusively through bounded Mailboxes; the Engine wires actor
// dependencies together, spawns each actor under a labeled child Context and
// drives coordinated shutdown by cancelling the root.
package runtime
