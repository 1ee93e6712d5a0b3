package entity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/app/server/api/http/middleware/owner"
	"possync/internal/domain/entity"
)

type Handler struct {
	service    entity.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service entity.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	ownerID, ok := owner.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("owner is not specified")
	}

	records, err := h.service.List(ctx, ownerID, entity.Kind(input.Kind))
	if err != nil {
		return nil, h.mapError(err)
	}

	wire := make([]entity.WireRecord, 0, len(records))
	for _, rec := range records {
		if input.StoreID != "" && storeOf(rec.Fields) != input.StoreID {
			continue
		}
		wire = append(wire, rec.Wire())
	}

	return &listOutput{
		Body: entity.ListResponse{Records: wire, Total: len(wire)},
	}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*recordOutput, error) {
	ownerID, ok := owner.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("owner is not specified")
	}

	rec, err := h.service.Find(ctx, ownerID, entity.Kind(input.Kind), input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &recordOutput{Status: http.StatusOK, Body: rec.Wire()}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*recordOutput, error) {
	ownerID, ok := owner.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("owner is not specified")
	}

	rec, replayed, err := h.service.Create(ctx, ownerID, entity.Kind(input.Kind), input.RawBody, input.IdempotencyKey)
	if err != nil {
		return nil, h.mapError(err)
	}

	status := http.StatusCreated
	if replayed {
		h.log.Info("idempotent replay", "kind", input.Kind, "id", rec.ID)
		status = http.StatusOK
	}
	return &recordOutput{Status: status, Body: rec.Wire()}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*recordOutput, error) {
	ownerID, ok := owner.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("owner is not specified")
	}

	rec, err := h.service.Update(ctx, ownerID, entity.Kind(input.Kind), input.ID, input.RawBody)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &recordOutput{Status: http.StatusOK, Body: rec.Wire()}, nil
}

func (h *Handler) delete(ctx context.Context, input *findInput) (*deleteOutput, error) {
	ownerID, ok := owner.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("owner is not specified")
	}

	if err := h.service.Delete(ctx, ownerID, entity.Kind(input.Kind), input.ID); err != nil {
		return nil, h.mapError(err)
	}
	return &deleteOutput{}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, entity.ErrOwnerMissing):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, entity.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, entity.ErrProtected):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, entity.ErrInvalidData),
		errors.Is(err, entity.ErrUnknownKind),
		errors.Is(err, entity.ErrKindMismatch):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("entity request failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}

// storeOf достает storeId из полей записи.
func storeOf(raw json.RawMessage) string {
	var ref struct {
		StoreID string `json:"storeId"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ""
	}
	return ref.StoreID
}
