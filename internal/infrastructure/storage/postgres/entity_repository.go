package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"possync/internal/domain/entity"
)

const entityColumns = `id::text, owner_id, kind, fields, idempotency_key, created_at, updated_at, deleted_at`

type EntityRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEntityRepository(pool *pgxpool.Pool, log *slog.Logger) *EntityRepository {
	return &EntityRepository{
		pool: pool,
		log:  log.With("component", "entity_repository"),
	}
}

func (r *EntityRepository) List(ctx context.Context, ownerID string, kind entity.Kind) ([]entity.StoredRecord, error) {
	const query = `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE owner_id = $1 AND kind = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, ownerID, string(kind))
	if err != nil {
		r.log.Error("failed to list entities", "owner_id", ownerID, "kind", kind, "error", err)
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	records := make([]entity.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return records, nil
}

func (r *EntityRepository) Get(ctx context.Context, ownerID string, kind entity.Kind, id string) (*entity.StoredRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, entity.ErrNotFound
	}

	const query = `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE id = $1 AND owner_id = $2 AND kind = $3 AND deleted_at IS NULL`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, ownerID, string(kind)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		r.log.Error("failed to get entity", "id", id, "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return rec, nil
}

func (r *EntityRepository) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (*entity.StoredRecord, error) {
	const query = `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE owner_id = $1 AND idempotency_key = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, ownerID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by idempotency key: %w", err)
	}
	return rec, nil
}

// Create вставляет строку. При конфликте ключа идемпотентности
// возвращает уже существующую.
func (r *EntityRepository) Create(ctx context.Context, rec entity.StoredRecord) (*entity.StoredRecord, error) {
	const query = `
		INSERT INTO entities (id, owner_id, kind, fields, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING ` + entityColumns

	created, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID, rec.OwnerID, string(rec.Kind), []byte(rec.Fields),
		nullable(rec.IdempotencyKey), rec.CreatedAt, rec.UpdatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) && rec.IdempotencyKey != "" {
		r.log.Info("idempotency key conflict, returning existing entity",
			"owner_id", rec.OwnerID, "kind", rec.Kind)
		return r.GetByIdempotencyKey(ctx, rec.OwnerID, rec.IdempotencyKey)
	}
	if err != nil {
		r.log.Error("failed to create entity", "owner_id", rec.OwnerID, "kind", rec.Kind, "error", err)
		return nil, fmt.Errorf("create entity: %w", err)
	}
	return created, nil
}

func (r *EntityRepository) Update(ctx context.Context, rec entity.StoredRecord) (*entity.StoredRecord, error) {
	const query = `
		UPDATE entities
		SET fields = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND kind = $5 AND deleted_at IS NULL
		RETURNING ` + entityColumns

	updated, err := scanRecord(r.pool.QueryRow(ctx, query,
		[]byte(rec.Fields), rec.UpdatedAt, rec.ID, rec.OwnerID, string(rec.Kind),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		r.log.Error("failed to update entity", "id", rec.ID, "error", err)
		return nil, fmt.Errorf("update entity: %w", err)
	}
	return updated, nil
}

func (r *EntityRepository) SoftDelete(ctx context.Context, ownerID string, kind entity.Kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return entity.ErrNotFound
	}

	const query = `
		UPDATE entities
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND owner_id = $3 AND kind = $4 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id, ownerID, string(kind))
	if err != nil {
		r.log.Error("failed to delete entity", "id", id, "error", err)
		return fmt.Errorf("delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*entity.StoredRecord, error) {
	var (
		rec  entity.StoredRecord
		kind string
		raw  []byte
		key  *string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &kind, &raw, &key, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt); err != nil {
		return nil, err
	}
	rec.Kind = entity.Kind(kind)
	rec.Fields = raw
	if key != nil {
		rec.IdempotencyKey = *key
	}
	return &rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
