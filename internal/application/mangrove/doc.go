// Package mangrove implements the application layer over the domain registry.
//
// The domain Registry is a plain single-threaded value. This package adds what a
// running program needs around it:
//   - Service: one registry behind a sync.RWMutex, with a span per operation,
//     a change feed, and a read-through cache for group expansions
//   - Handles: a caller-owned set of services addressed by uuid
//   - Plan loading: YAML plan files applied step by step to a Service
//
// # Import Aliasing
//
// This package has the same name as the domain package. Import the domain one
// under an alias:
//
//	import (
//	    domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
//	    appmangrove "github.com/zjrosen/mangrove/internal/application/mangrove"
//	)
package mangrove
