package repository

import (
	"context"
)

// Repository stores JSON documents by id inside a named database
type Repository interface {
	// GetByID returns the raw stored document (types.ErrNotFound when missing). Use MapToObject to decode it.
	GetByID(ctx context.Context, id string) (interface{}, error)
	Save(ctx context.Context, docID string, data interface{}) error
	Delete(ctx context.Context, id string) error
	GetDBName() string
}
