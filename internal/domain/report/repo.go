package report

import (
	"context"
)

// Index records report metadata for listing. It is optional; without it
// reports are listed from the blob store.
type Index interface {
	Create(ctx context.Context, r *Report) error
	List(ctx context.Context, limit, offset int) ([]*Report, int, error)
}
