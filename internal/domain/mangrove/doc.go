// Package mangrove implements the domain layer of the depth-layered variable registry.
//
// The package is pure Go with standard library imports only. It has no knowledge of
// locking, logging, tracing, caching or file formats; those live in the application
// layer (internal/application/mangrove).
//
// # Core Types
//
// TypeTag is the closed set of value types a variable may hold. TypeOf resolves a Go
// value to its tag through a type switch.
//
// Catalog declares the allowed type tags per depth. Depth 0 is built in and
// immutable; depths 1..n must be configured in order without gaps.
//
// Registry is the name-keyed store of variables. Names are write-once, assignments
// must match the declared tag exactly, and a variable's depth only changes through
// Push, Shift or Detach.
//
// # Bindings and Groups
//
// The registry pairs variables across (depth, type) selectors in two distinct ways:
//   - Bind zips: the first n candidates of every selector, position-aligned, stored
//     under a write-once name and never recomputed.
//   - GroupSelectors + ExpandGroup produce the full cross product of all candidates,
//     recomputed from current contents on every expansion.
//
// Callers that need "the i-th of each kind" want Bind. Callers that need every
// combination want ExpandGroup.
//
// # Concurrency
//
// Registry is not safe for concurrent use. Wrap one instance behind a single lock
// (see the application Service) when sharing it between goroutines.
package mangrove
