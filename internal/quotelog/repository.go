package quotelog

import "context"

// ListOptions contains options for listing entries.
type ListOptions struct {
	Limit  int
	Cursor string
	Status Status
}

// ListResult contains the results of listing entries, newest first.
type ListResult struct {
	Items      []*Entry
	NextCursor string
}

// Repository defines the interface for quote log persistence.
type Repository interface {
	// Create appends an entry.
	Create(ctx context.Context, e *Entry) error

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id string) (*Entry, error)

	// List retrieves entries newest first. Cursor is the ID of the last entry
	// of the previous page.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}
