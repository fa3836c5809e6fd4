// Package store holds the persistence collaborator contract, its backends, and
// the Draft, Report, User and Account stores built on top of it.
package store

import "context"

// Logical collections.
const (
	CollectionReports        = "reports"
	CollectionPendingReports = "pendingReports"
	CollectionUsers          = "users"
	CollectionAccounts       = "accounts"
)

// Collections lists every logical collection a backend must serve.
var Collections = []string{CollectionReports, CollectionPendingReports, CollectionUsers, CollectionAccounts}

// Backend is a key-addressable document store. Documents are addressed by a
// string id inside a named collection.
type Backend interface {
	// Get decodes the document into out. found is false when the id is absent.
	Get(ctx context.Context, collection, id string, out any) (found bool, err error)
	// Put inserts or replaces the document.
	Put(ctx context.Context, collection, id string, doc any) error
	// Delete removes the document. Deleting an absent id is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query decodes every document whose field equals value into out (a pointer to a slice).
	Query(ctx context.Context, collection, field, value string, out any) error
	// All decodes the whole collection into out (a pointer to a slice).
	All(ctx context.Context, collection string, out any) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases connections.
	Close(ctx context.Context) error
}
