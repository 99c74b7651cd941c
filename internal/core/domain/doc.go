// Package domain contains the core business entities of the indexer:
// documents, chunks, retrieval candidates, and the errors shared across
// services and adapters. It has no dependencies on other internal packages.
package domain
