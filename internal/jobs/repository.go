package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/pkg/pagination"
	"github.com/JaimeStill/nexus/pkg/query"
	"github.com/JaimeStill/nexus/pkg/queue"
	"github.com/JaimeStill/nexus/pkg/repository"
	"github.com/JaimeStill/nexus/pkg/storage"
)

// Enqueuer publishes a job for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.Message) error
}

var dbErrors = repository.Errors{
	NotFound:   ErrNotFound,
	Duplicate:  ErrDuplicate,
	Constraint: ErrInvalidUpdate,
}

type repo struct {
	db         *sql.DB
	storage    storage.System
	queue      Enqueuer
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a job repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	enqueuer Enqueuer,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		queue:      enqueuer,
		logger:     logger.With("system", "jobs"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if err := projection.CheckSort(page.Sort); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	jobs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	result := pagination.NewPageResult(jobs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("id", id)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return &j, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Job, error) {
	id := uuid.New()
	key := SourceKey(id, SanitizeFilename(cmd.Filename))

	q := `
		INSERT INTO jobs(id, filename, content_type, size_bytes, page_count, source_location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + returningColumns

	insertArgs := []any{
		id,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		StatusSaving,
	}

	if _, err := repository.QueryOne(ctx, r.db, q, insertArgs, scanJob); err != nil {
		return nil, dbErrors.Map(err)
	}

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		r.markFailed(ctx, id, "failed to store uploaded document")
		return nil, fmt.Errorf("upload source blob: %w", err)
	}

	j, err := r.Update(ctx, id, Queued())
	if err != nil {
		return nil, err
	}

	msg := queue.Message{JobID: id, SourceLocation: key}
	if err := r.queue.Enqueue(ctx, msg); err != nil {
		r.markFailed(ctx, id, "failed to enqueue job for processing")
		return nil, fmt.Errorf("%w: %w", ErrEnqueue, err)
	}

	r.logger.Info("job created", "id", j.ID, "filename", j.Filename, "size_bytes", j.SizeBytes)
	return j, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, u Update) (*Job, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	pages, err := encodeLocations(u.PageImageLocations)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE jobs SET
			status = $2,
			page_image_locations = COALESCE($3::jsonb, page_image_locations),
			result = $4,
			error = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)
		RETURNING ` + returningColumns

	args := []any{
		id,
		u.Status,
		pages,
		u.Result,
		u.Error,
		statusArgs(u.Status.Predecessors()),
	}

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err == nil {
		r.logger.Debug("job updated", "id", id, "status", j.Status)
		return &j, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update job %s: %w", id, dbErrors.Map(err))
	}

	current, findErr := r.Find(ctx, id)
	if findErr != nil {
		return nil, findErr
	}

	if u.AppliedTo(current) {
		r.logger.Debug("job update already applied", "id", id, "status", current.Status)
		return current, nil
	}

	return nil, fmt.Errorf(
		"%w: %s -> %s",
		ErrInvalidTransition, current.Status, u.Status,
	)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	find, args := query.NewBuilder(projection).BuildSingle("id", id)

	j, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Job, error) {
		j, err := repository.QueryOne(ctx, tx, find+" FOR UPDATE", args, scanJob)
		if err != nil {
			return j, err
		}
		if !j.Status.IsTerminal() {
			return j, fmt.Errorf("%w: status %s", ErrJobActive, j.Status)
		}
		return j, repository.ExecExpectOne(ctx, tx, "DELETE FROM jobs WHERE id = $1", id)
	})
	if err != nil {
		return dbErrors.Map(err)
	}

	keys := append([]string{j.SourceLocation}, j.PageImageLocations...)
	for _, key := range keys {
		if delErr := r.storage.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			r.logger.Warn("blob delete failed after DB delete", "key", key, "error", delErr)
		}
	}

	r.logger.Info("job deleted", "id", id)
	return nil
}

func (r *repo) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	if _, err := r.Update(ctx, id, Failed(reason)); err != nil {
		r.logger.Error("mark job failed", "id", id, "reason", reason, "error", err)
	}
}
