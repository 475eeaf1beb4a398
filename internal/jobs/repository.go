package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/pkg/pagination"
	"github.com/slidesmith/slidesmith/pkg/query"
	"github.com/slidesmith/slidesmith/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewRepository creates a PostgreSQL-backed job store implementing System.
func NewRepository(db *sql.DB, logger *slog.Logger, pageCfg pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "jobs"),
		pagination: pageCfg,
	}
}

const columns = `id, status, progress, current_node, node_history, errors,
	recovery_attempted, recovery_strategy, data, result, created_at, completed_at, version`

func (r *repo) Create(ctx context.Context, j *Job) error {
	history, errs, data, err := marshalFields(j)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		INSERT INTO jobs(id, status, progress, current_node, node_history, errors,
			recovery_attempted, recovery_strategy, data, result, created_at, completed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		RETURNING %s`, columns)

	args := []any{
		j.ID, j.Status, j.Progress, j.CurrentNode, history, errs,
		j.RecoveryAttempted, j.RecoveryStrategy, data, j.Result, j.CreatedAt, j.CompletedAt,
	}

	stored, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrConflict)
	}

	j.Version = stored.Version
	r.logger.Info("job created", "id", j.ID)
	return nil
}

// Update persists the job with optimistic concurrency: the row is written
// only when the stored version matches the caller's copy, and the version
// advances with the write. A missed match distinguishes between a missing
// row (ErrNotFound) and a concurrent update (ErrConflict).
func (r *repo) Update(ctx context.Context, j *Job) error {
	history, errs, data, err := marshalFields(j)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		UPDATE jobs
		SET status = $2, progress = $3, current_node = $4, node_history = $5,
			errors = $6, recovery_attempted = $7, recovery_strategy = $8,
			data = $9, result = $10, completed_at = $11, version = version + 1
		WHERE id = $1 AND version = $12
		RETURNING %s`, columns)

	args := []any{
		j.ID, j.Status, j.Progress, j.CurrentNode, history,
		errs, j.RecoveryAttempted, j.RecoveryStrategy,
		data, j.Result, j.CompletedAt, j.Version,
	}

	stored, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		mapped := repository.MapError(err, ErrNotFound, ErrConflict)
		if mapped != ErrNotFound {
			return mapped
		}
		// The row exists but at a different version.
		if _, findErr := r.Find(ctx, j.ID); findErr == nil {
			return ErrConflict
		}
		return ErrNotFound
	}

	j.Version = stored.Version
	return nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return &j, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
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
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func marshalFields(j *Job) (history, errs, data []byte, err error) {
	if history, err = json.Marshal(j.NodeHistory); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal node_history: %w", err)
	}
	if errs, err = json.Marshal(j.Errors); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal errors: %w", err)
	}
	if data, err = json.Marshal(j.Data); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal data: %w", err)
	}
	return history, errs, data, nil
}

func scanJob(s repository.Scanner) (Job, error) {
	var (
		j       Job
		history []byte
		errs    []byte
		data    []byte
	)

	err := s.Scan(
		&j.ID, &j.Status, &j.Progress, &j.CurrentNode, &history, &errs,
		&j.RecoveryAttempted, &j.RecoveryStrategy, &data, &j.Result,
		&j.CreatedAt, &j.CompletedAt, &j.Version,
	)
	if err != nil {
		return Job{}, err
	}

	if err := json.Unmarshal(history, &j.NodeHistory); err != nil {
		return Job{}, fmt.Errorf("unmarshal node_history: %w", err)
	}
	if err := json.Unmarshal(errs, &j.Errors); err != nil {
		return Job{}, fmt.Errorf("unmarshal errors: %w", err)
	}
	if err := json.Unmarshal(data, &j.Data); err != nil {
		return Job{}, fmt.Errorf("unmarshal data: %w", err)
	}

	// Guard against NULL-tolerant decoding producing typed nils.
	if j.Errors == nil {
		j.Errors = []faults.Record{}
	}

	return j, nil
}
