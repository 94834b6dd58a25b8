package ports

import "context"

// Document is one record of a remote collection. Fields hold the raw
// attribute map; callers decode into typed structs.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter is a conjunctive set of equality predicates over document fields.
type Filter map[string]any

// DocumentStore is the client view of the remote document database. The
// concrete backend is independently consistent; operations are individually
// atomic, nothing spans documents.
type DocumentStore interface {
	List(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Create(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}
