// Package seqalloc implements the sequence allocator used to order
// privileged operations: unique, monotonically increasing numbers per
// logical key. A node can embed the in-memory store directly, expose it over
// HTTP to act as the allocator for other nodes, or consume a remote
// allocator through the retrying client. All implementations satisfy
// Allocator.
package seqalloc
