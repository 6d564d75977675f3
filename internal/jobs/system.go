package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/pkg/pagination"
)

// System defines the public contract for job domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Job], error)

	Find(ctx context.Context, id uuid.UUID) (*Job, error)

	// Create stores the uploaded document, records the job, and enqueues it.
	Create(ctx context.Context, cmd CreateCommand) (*Job, error)

	// Update applies u atomically. The write succeeds when the stored status
	// may transition to u.Status, or already equals it so a repeated write is
	// harmless; otherwise ErrInvalidTransition.
	Update(ctx context.Context, id uuid.UUID, u Update) (*Job, error)

	// Delete removes a terminal job and its remaining artifacts.
	Delete(ctx context.Context, id uuid.UUID) error
}
