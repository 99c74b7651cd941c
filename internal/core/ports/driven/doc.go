// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). The indexing and retrieval services depend
// on these interfaces only; concrete adapters live under
// internal/adapters/driven.
package driven
