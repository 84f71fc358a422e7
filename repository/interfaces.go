package repository

import "context"

// DocumentStore is the key-value byte store backing the wall. Documents are read
// whole and written whole; a key that was never written loads as nil.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, body []byte) error
}

var (
	_ DocumentStore = (*DocumentRepository)(nil)
	_ DocumentStore = (*MemoryDocumentStore)(nil)
)
