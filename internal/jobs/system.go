package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/pkg/pagination"
)

// Filters narrows job list queries.
type Filters struct {
	// Status restricts results to a single status when non-empty.
	Status Status
}

// System defines the persistence contract for jobs. Create inserts a new
// record; Update persists changes with optimistic concurrency and returns
// ErrConflict when the stored version has moved past the caller's copy.
type System interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	Find(ctx context.Context, id uuid.UUID) (*Job, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Job], error)
}
