package client

import (
	"context"
	"encoding/json"

	"possync/internal/domain/entity"
)

// Remote - удаленный API сущностей. Ошибки - *entity.RemoteCallError,
// у которых Transient различает сбой сети и отказ сервера.
type Remote interface {
	List(ctx context.Context, kind entity.Kind, filter entity.Filter) ([]entity.Record, error)
	Get(ctx context.Context, kind entity.Kind, id string) (*entity.Record, error)
	Create(ctx context.Context, kind entity.Kind, fields json.RawMessage, idempotencyKey string) (*entity.Record, error)
	Update(ctx context.Context, kind entity.Kind, id string, fields json.RawMessage) (*entity.Record, error)
	Delete(ctx context.Context, kind entity.Kind, id string) error
}
