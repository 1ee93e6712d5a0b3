package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	List(ctx context.Context, ownerID string, kind Kind) ([]StoredRecord, error)
	Find(ctx context.Context, ownerID string, kind Kind, id string) (*StoredRecord, error)
	Create(ctx context.Context, ownerID string, kind Kind, fields json.RawMessage, idempotencyKey string) (*StoredRecord, bool, error)
	Update(ctx context.Context, ownerID string, kind Kind, id string, fields json.RawMessage) (*StoredRecord, error)
	Delete(ctx context.Context, ownerID string, kind Kind, id string) error
}

// Service - серверная логика хранения сущностей.
type Service struct {
	repo   Repository
	cache  IdempotencyCache
	guards map[Kind]Guard
	log    *slog.Logger
	now    func() time.Time
}

// NewService создает сервис. cache может быть nil.
func NewService(repo Repository, cache IdempotencyCache, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		guards: DefaultGuards(),
		log:    log.With("component", "entity_service"),
		now:    time.Now,
	}
}

func (s *Service) List(ctx context.Context, ownerID string, kind Kind) ([]StoredRecord, error) {
	if err := checkScope(ownerID, kind); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	return records, nil
}

func (s *Service) Find(ctx context.Context, ownerID string, kind Kind, id string) (*StoredRecord, error) {
	if err := checkScope(ownerID, kind); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, ownerID, kind, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create сохраняет запись. Повтор с тем же ключом идемпотентности
// возвращает ранее созданную запись и replayed = true.
func (s *Service) Create(ctx context.Context, ownerID string, kind Kind, fields json.RawMessage, idempotencyKey string) (*StoredRecord, bool, error) {
	if err := checkScope(ownerID, kind); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		if rec := s.replay(ctx, ownerID, kind, idempotencyKey); rec != nil {
			return rec, true, nil
		}
	}

	normalized, err := normalize(kind, fields)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, StoredRecord{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Kind:           kind,
		Fields:         normalized,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create %s: %w", kind, err)
	}

	if idempotencyKey != "" && s.cache != nil {
		if err := s.cache.Remember(ctx, ownerID, idempotencyKey, created.ID); err != nil {
			s.log.Warn("failed to cache idempotency key", "error", err)
		}
	}

	return created, false, nil
}

func (s *Service) replay(ctx context.Context, ownerID string, kind Kind, key string) *StoredRecord {
	if s.cache != nil {
		id, ok, err := s.cache.Lookup(ctx, ownerID, key)
		if err != nil {
			s.log.Warn("idempotency cache lookup failed", "error", err)
		}
		if ok {
			if rec, err := s.repo.Get(ctx, ownerID, kind, id); err == nil {
				return rec
			}
		}
	}

	rec, err := s.repo.GetByIdempotencyKey(ctx, ownerID, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("idempotency lookup failed", "error", err)
		}
		return nil
	}
	return rec
}

func (s *Service) Update(ctx context.Context, ownerID string, kind Kind, id string, fields json.RawMessage) (*StoredRecord, error) {
	if err := checkScope(ownerID, kind); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, ownerID, kind, id)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize(kind, fields)
	if err != nil {
		return nil, err
	}

	existing.Fields = normalized
	existing.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, *existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", kind, id, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ownerID string, kind Kind, id string) error {
	if err := checkScope(ownerID, kind); err != nil {
		return err
	}

	if guard, ok := s.guards[kind]; ok {
		if err := s.checkGuard(ctx, guard, ownerID, kind, id); err != nil {
			return err
		}
	}

	if err := s.repo.SoftDelete(ctx, ownerID, kind, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) checkGuard(ctx context.Context, guard Guard, ownerID string, kind Kind, id string) error {
	stored, err := s.repo.List(ctx, ownerID, kind)
	if err != nil {
		return fmt.Errorf("failed to load %s for delete check: %w", kind, err)
	}

	target := -1
	all := make([]Record, 0, len(stored))
	for _, sr := range stored {
		rec, err := sr.Wire().ToRecord()
		if err != nil {
			return err
		}
		if rec.ID == id {
			target = len(all)
		}
		all = append(all, rec)
	}
	if target < 0 {
		return ErrNotFound
	}

	return guard.CheckDelete(all[target], all)
}

func checkScope(ownerID string, kind Kind) error {
	if ownerID == "" {
		return ErrOwnerMissing
	}
	return kind.Validate()
}

func normalize(kind Kind, raw json.RawMessage) (json.RawMessage, error) {
	fields, err := DecodeFields(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return EncodeFields(fields)
}
