package entity

import (
	"context"
	"encoding/json"
	"time"
)

// StoredRecord - строка серверного хранилища.
type StoredRecord struct {
	ID             string
	OwnerID        string
	Kind           Kind
	Fields         json.RawMessage
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Wire возвращает представление для API.
func (r StoredRecord) Wire() WireRecord {
	return WireRecord{
		ID:        r.ID,
		Kind:      r.Kind,
		Fields:    r.Fields,
		UpdatedAt: r.UpdatedAt,
	}
}

type Repository interface {
	List(ctx context.Context, ownerID string, kind Kind) ([]StoredRecord, error)
	Get(ctx context.Context, ownerID string, kind Kind, id string) (*StoredRecord, error)
	GetByIdempotencyKey(ctx context.Context, ownerID, key string) (*StoredRecord, error)
	// Create возвращает уже существующую строку при повторе ключа идемпотентности.
	Create(ctx context.Context, rec StoredRecord) (*StoredRecord, error)
	Update(ctx context.Context, rec StoredRecord) (*StoredRecord, error)
	SoftDelete(ctx context.Context, ownerID string, kind Kind, id string) error
}

// IdempotencyCache - быстрый кэш ключ -> id созданной записи.
type IdempotencyCache interface {
	Lookup(ctx context.Context, ownerID, key string) (string, bool, error)
	Remember(ctx context.Context, ownerID, key, id string) error
}
