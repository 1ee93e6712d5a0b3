package entity

import (
	"possync/internal/domain/entity"
)

type listInput struct {
	Kind    string `path:"kind" example:"product" doc:"Вид сущности"`
	StoreID string `query:"store_id" required:"false" doc:"Оставить только записи магазина"`
}

type listOutput struct {
	Body entity.ListResponse
}

type findInput struct {
	Kind string `path:"kind" example:"product" doc:"Вид сущности"`
	ID   string `path:"id" doc:"Серверный идентификатор"`
}

type createInput struct {
	Kind           string `path:"kind" example:"product" doc:"Вид сущности"`
	IdempotencyKey string `header:"Idempotency-Key" required:"false" doc:"Повтор с тем же ключом вернет уже созданную запись"`
	RawBody        []byte `contentType:"application/json"`
}

type updateInput struct {
	Kind    string `path:"kind" example:"product" doc:"Вид сущности"`
	ID      string `path:"id" doc:"Серверный идентификатор"`
	RawBody []byte `contentType:"application/json"`
}

type recordOutput struct {
	Status int
	Body   entity.WireRecord
}

type deleteOutput struct{}
